package logging

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// --- Job Execution Listener ---

type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, je *model.JobExecution) {
	logger.Infof("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %s", je.JobName, je.ID, je.Parameters.String())
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	status, exit := je.GetStatus(), je.GetExitStatus()
	if status.IsUnsuccessful() {
		logger.Warnf("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, Failures: %v",
			je.JobName, status, exit.ExitCode, je.AllFailures())
		return
	}
	logger.Infof("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s", je.JobName, status, exit.ExitCode)
}

var _ port.JobExecutionListener = (*LoggingJobListener)(nil)

// --- Step Execution Listener ---

type LoggingStepListener struct{}

func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, se *model.StepExecution) {
	logger.Infof("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", se.StepName, se.ID)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, se *model.StepExecution) {
	logger.Infof("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Commits: %d, Rollbacks: %d",
		se.StepName, se.Status, se.ExitStatus.ExitCode, se.ReadCount, se.WriteCount, se.CommitCount, se.RollbackCount)
}

var _ port.StepExecutionListener = (*LoggingStepListener)(nil)

// --- Chunk Listener ---

type LoggingChunkListener struct{}

func NewLoggingChunkListener() *LoggingChunkListener {
	return &LoggingChunkListener{}
}

func (l *LoggingChunkListener) BeforeChunk(ctx context.Context, cc *model.ChunkContext) {
	logger.Debugf("ChunkListener: BeforeChunk - StepName: %s", cc.StepExecution.StepName)
}

func (l *LoggingChunkListener) AfterChunk(ctx context.Context, cc *model.ChunkContext) {
	se := cc.StepExecution
	logger.Debugf("ChunkListener: AfterChunk - StepName: %s, Read: %d, Write: %d", se.StepName, se.ReadCount, se.WriteCount)
}

func (l *LoggingChunkListener) AfterChunkError(ctx context.Context, cc *model.ChunkContext, err error) {
	logger.Errorf("ChunkListener: AfterChunkError - StepName: %s, Error: %v", cc.StepExecution.StepName, err)
}

var _ port.ChunkListener = (*LoggingChunkListener)(nil)
