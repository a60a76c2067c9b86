package sql

import (
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/serialization"
)

func fromDomainJobInstance(ji *model.JobInstance) *JobInstanceEntity {
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		ParametersHash: ji.ParametersHash,
		Parameters:     ji.Parameters,
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}
}

func toDomainJobInstance(e *JobInstanceEntity) *model.JobInstance {
	return &model.JobInstance{
		ID:             e.ID,
		JobName:        e.JobName,
		ParametersHash: e.ParametersHash,
		Parameters:     e.Parameters,
		CreateTime:     e.CreateTime,
		Version:        e.Version,
	}
}

func fromDomainJobExecution(live *model.JobExecution) (*JobExecutionEntity, error) {
	je := live.Snapshot()
	failures, err := serialization.MarshalFailures(je.Failures)
	if err != nil {
		return nil, err
	}
	e := &JobExecutionEntity{
		ID:              je.ID,
		JobInstanceID:   je.JobInstanceID,
		JobName:         je.JobName,
		Parameters:      je.Parameters,
		Status:          string(je.Status),
		ExitCode:        je.ExitStatus.ExitCode,
		ExitDescription: je.ExitStatus.ExitDescription,
		EndTime:         je.EndTime,
		CreateTime:      je.CreateTime,
		LastUpdated:     je.LastUpdated,
		Failures:        string(failures),
		Version:         je.Version,
	}
	if !je.StartTime.IsZero() {
		start := je.StartTime
		e.StartTime = &start
	}
	return e, nil
}

func toDomainJobExecution(e *JobExecutionEntity) (*model.JobExecution, error) {
	failures, err := serialization.UnmarshalFailures([]byte(e.Failures))
	if err != nil {
		return nil, err
	}
	je := &model.JobExecution{
		ID:               e.ID,
		JobInstanceID:    e.JobInstanceID,
		JobName:          e.JobName,
		Parameters:       e.Parameters,
		Status:           model.BatchStatus(e.Status),
		ExitStatus:       model.NewExitStatus(e.ExitCode, e.ExitDescription),
		EndTime:          e.EndTime,
		CreateTime:       e.CreateTime,
		LastUpdated:      e.LastUpdated,
		Failures:         failures,
		StepExecutions:   []*model.StepExecution{},
		ExecutionContext: model.NewExecutionContext(),
		Version:          e.Version,
	}
	if e.StartTime != nil {
		je.StartTime = *e.StartTime
	}
	return je, nil
}

func fromDomainStepExecution(se *model.StepExecution) (*StepExecutionEntity, error) {
	failures, err := serialization.MarshalFailures(se.Failures)
	if err != nil {
		return nil, err
	}
	return &StepExecutionEntity{
		ID:               se.ID,
		JobExecutionID:   se.JobExecutionID,
		StepName:         se.StepName,
		Status:           string(se.Status),
		ExitCode:         se.ExitStatus.ExitCode,
		ExitDescription:  se.ExitStatus.ExitDescription,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		FilterCount:      se.FilterCount,
		ReadSkipCount:    se.ReadSkipCount,
		ProcessSkipCount: se.ProcessSkipCount,
		WriteSkipCount:   se.WriteSkipCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		StartTime:        se.StartTime,
		EndTime:          se.EndTime,
		LastUpdated:      se.LastUpdated,
		Failures:         string(failures),
		Version:          se.Version,
	}, nil
}

// toDomainStepExecution maps e; the caller attaches the JobExecution.
func toDomainStepExecution(e *StepExecutionEntity) (*model.StepExecution, error) {
	failures, err := serialization.UnmarshalFailures([]byte(e.Failures))
	if err != nil {
		return nil, err
	}
	return &model.StepExecution{
		ID:               e.ID,
		JobExecutionID:   e.JobExecutionID,
		StepName:         e.StepName,
		Status:           model.BatchStatus(e.Status),
		ExitStatus:       model.NewExitStatus(e.ExitCode, e.ExitDescription),
		ReadCount:        e.ReadCount,
		WriteCount:       e.WriteCount,
		FilterCount:      e.FilterCount,
		ReadSkipCount:    e.ReadSkipCount,
		ProcessSkipCount: e.ProcessSkipCount,
		WriteSkipCount:   e.WriteSkipCount,
		CommitCount:      e.CommitCount,
		RollbackCount:    e.RollbackCount,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		LastUpdated:      e.LastUpdated,
		Failures:         failures,
		ExecutionContext: model.NewExecutionContext(),
		Version:          e.Version,
	}, nil
}

func marshalContext(ec *model.ExecutionContext) (string, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := serialization.MarshalMap(ec.Entries())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalContext(data string) (*model.ExecutionContext, error) {
	entries, err := serialization.UnmarshalMap([]byte(data))
	if err != nil {
		return nil, err
	}
	return model.NewExecutionContextFrom(entries), nil
}
