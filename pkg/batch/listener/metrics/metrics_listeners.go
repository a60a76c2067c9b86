package metrics

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

// MetricsChunkListener counts committed and rolled back tasklet invocations.
// Job and step metrics are recorded by the job and step runners themselves.
type MetricsChunkListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsChunkListener(recorder metrics.MetricRecorder) *MetricsChunkListener {
	return &MetricsChunkListener{recorder: recorder}
}

func (l *MetricsChunkListener) BeforeChunk(ctx context.Context, cc *model.ChunkContext) {}

func (l *MetricsChunkListener) AfterChunk(ctx context.Context, cc *model.ChunkContext) {
	l.recorder.RecordChunkCommit(ctx, cc.StepExecution.StepName)
}

func (l *MetricsChunkListener) AfterChunkError(ctx context.Context, cc *model.ChunkContext, err error) {
	l.recorder.RecordChunkRollback(ctx, cc.StepExecution.StepName)
}

var _ port.ChunkListener = (*MetricsChunkListener)(nil)
