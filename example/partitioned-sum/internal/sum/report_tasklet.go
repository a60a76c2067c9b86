package sum

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ReportTasklet publishes the verified total as a small text object named
// "sum-<job instance id>.txt" on a storage connection.
type ReportTasklet struct {
	resolver   storage.ConnectionResolver
	connection string
}

// NewReportTasklet creates a ReportTasklet writing to the storage connection
// named connection.
func NewReportTasklet(resolver storage.ConnectionResolver, connection string) *ReportTasklet {
	return &ReportTasklet{resolver: resolver, connection: connection}
}

// Execute implements tasklet.Tasklet.
func (t *ReportTasklet) Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	je := cc.StepExecution.JobExecution
	total := je.ExecutionContext.GetInt64(TotalKey, 0)

	conn, err := t.resolver.ResolveStorageConnection(ctx, t.connection)
	if err != nil {
		return tasklet.Failed, err
	}
	object := ObjectName(je)
	body := fmt.Sprintf("job=%s\nexecution=%s\ntotal=%d\n", je.JobName, je.ID, total)
	if err := conn.Upload(ctx, "", object, bytes.NewBufferString(body), "text/plain"); err != nil {
		return tasklet.Failed, err
	}
	contribution.IncrementWriteCount(1)
	logger.Infof("ReportTasklet: published '%s' to storage '%s'.", object, t.connection)
	return tasklet.Finished, nil
}

// ObjectName returns the name of the report object of je.
func ObjectName(je *model.JobExecution) string {
	id := je.ID
	if je.JobInstance != nil {
		id = je.JobInstance.ID
	}
	return fmt.Sprintf("sum-%s.txt", id)
}

var _ tasklet.Tasklet = (*ReportTasklet)(nil)
