package sql

import (
	"time"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// JobInstanceEntity is the persisted form of model.JobInstance.
type JobInstanceEntity struct {
	ID             string              `gorm:"column:id;primaryKey"`
	JobName        string              `gorm:"column:job_name"`
	ParametersHash string              `gorm:"column:parameters_hash"`
	Parameters     model.JobParameters `gorm:"column:parameters"`
	CreateTime     time.Time           `gorm:"column:create_time"`
	Version        int                 `gorm:"column:version"`
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the persisted form of model.JobExecution. Step
// executions and the execution context live in their own tables.
type JobExecutionEntity struct {
	ID              string              `gorm:"column:id;primaryKey"`
	JobInstanceID   string              `gorm:"column:job_instance_id"`
	JobName         string              `gorm:"column:job_name"`
	Parameters      model.JobParameters `gorm:"column:parameters"`
	Status          string              `gorm:"column:status"`
	ExitCode        string              `gorm:"column:exit_code"`
	ExitDescription string              `gorm:"column:exit_description"`
	StartTime       *time.Time          `gorm:"column:start_time"`
	EndTime         *time.Time          `gorm:"column:end_time"`
	CreateTime      time.Time           `gorm:"column:create_time"`
	LastUpdated     time.Time           `gorm:"column:last_updated"`
	Failures        string              `gorm:"column:failures"`
	Version         int                 `gorm:"column:version"`
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the persisted form of model.StepExecution.
type StepExecutionEntity struct {
	ID               string     `gorm:"column:id;primaryKey"`
	JobExecutionID   string     `gorm:"column:job_execution_id"`
	StepName         string     `gorm:"column:step_name"`
	Status           string     `gorm:"column:status"`
	ExitCode         string     `gorm:"column:exit_code"`
	ExitDescription  string     `gorm:"column:exit_description"`
	ReadCount        int64      `gorm:"column:read_count"`
	WriteCount       int64      `gorm:"column:write_count"`
	FilterCount      int64      `gorm:"column:filter_count"`
	ReadSkipCount    int64      `gorm:"column:read_skip_count"`
	ProcessSkipCount int64      `gorm:"column:process_skip_count"`
	WriteSkipCount   int64      `gorm:"column:write_skip_count"`
	CommitCount      int64      `gorm:"column:commit_count"`
	RollbackCount    int64      `gorm:"column:rollback_count"`
	StartTime        time.Time  `gorm:"column:start_time"`
	EndTime          *time.Time `gorm:"column:end_time"`
	LastUpdated      time.Time  `gorm:"column:last_updated"`
	Failures         string     `gorm:"column:failures"`
	Version          int        `gorm:"column:version"`
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}

// JobExecutionContextEntity holds the serialized context of a job execution.
type JobExecutionContextEntity struct {
	JobExecutionID string `gorm:"column:job_execution_id;primaryKey"`
	Context        string `gorm:"column:context"`
}

func (JobExecutionContextEntity) TableName() string {
	return "batch_job_execution_context"
}

// StepExecutionContextEntity holds the serialized context of a step execution.
type StepExecutionContextEntity struct {
	StepExecutionID string `gorm:"column:step_execution_id;primaryKey"`
	Context         string `gorm:"column:context"`
}

func (StepExecutionContextEntity) TableName() string {
	return "batch_step_execution_context"
}
