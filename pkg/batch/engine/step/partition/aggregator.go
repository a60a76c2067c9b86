package partition

import (
	"context"
	"sort"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// StepExecutionAggregator folds the children of a partitioned step into the master.
type StepExecutionAggregator interface {
	Aggregate(ctx context.Context, master *model.StepExecution, children []*model.StepExecution) error
}

// DefaultStepExecutionAggregator sets the master status to the most severe
// child status, ANDs the exit statuses and sums the counters. Children are
// folded in name order, so the result does not depend on completion order.
type DefaultStepExecutionAggregator struct{}

// Aggregate implements StepExecutionAggregator.
func (DefaultStepExecutionAggregator) Aggregate(_ context.Context, master *model.StepExecution, children []*model.StepExecution) error {
	if len(children) == 0 {
		return nil
	}
	sorted := append([]*model.StepExecution(nil), children...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StepName < sorted[j].StepName })

	for _, child := range sorted {
		master.Status = model.MaxStatus(master.Status, child.Status)
		master.ExitStatus = master.ExitStatus.And(child.ExitStatus)
		master.ReadCount += child.ReadCount
		master.WriteCount += child.WriteCount
		master.FilterCount += child.FilterCount
		master.ReadSkipCount += child.ReadSkipCount
		master.ProcessSkipCount += child.ProcessSkipCount
		master.WriteSkipCount += child.WriteSkipCount
		master.CommitCount += child.CommitCount
		master.RollbackCount += child.RollbackCount
	}
	return nil
}

// RemoteStepExecutionAggregator reloads every child from the repository
// before aggregating, for workers that ran in another process and updated
// only the stored copy.
type RemoteStepExecutionAggregator struct {
	repo     repository.JobRepository
	delegate StepExecutionAggregator
}

// NewRemoteStepExecutionAggregator creates a RemoteStepExecutionAggregator
// delegating to DefaultStepExecutionAggregator.
func NewRemoteStepExecutionAggregator(repo repository.JobRepository) *RemoteStepExecutionAggregator {
	return &RemoteStepExecutionAggregator{repo: repo, delegate: DefaultStepExecutionAggregator{}}
}

// Aggregate implements StepExecutionAggregator.
func (a *RemoteStepExecutionAggregator) Aggregate(ctx context.Context, master *model.StepExecution, children []*model.StepExecution) error {
	refreshed := make([]*model.StepExecution, 0, len(children))
	for _, child := range children {
		stored, err := a.repo.GetStepExecution(ctx, master.JobExecution, child.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotFound,
				"step execution %s (%s) is missing from the repository", child.ID, child.StepName)
		}
		refreshed = append(refreshed, stored)
	}
	return a.delegate.Aggregate(ctx, master, refreshed)
}

var (
	_ StepExecutionAggregator = DefaultStepExecutionAggregator{}
	_ StepExecutionAggregator = (*RemoteStepExecutionAggregator)(nil)
)
