package partition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// RejectedExitDescription is the exit description of a partition whose task
// the TaskExecutor refused.
const RejectedExitDescription = "TaskExecutor rejected the task for this step."

// PartitionHandler runs the children of a master StepExecution and returns
// them once all have finished.
type PartitionHandler interface {
	Handle(ctx context.Context, splitter StepExecutionSplitter, master *model.StepExecution) ([]*model.StepExecution, error)
}

// TaskExecutorPartitionHandler runs every child with the worker step on a
// TaskExecutor and blocks until all of them are done.
//
// A child whose task is rejected is marked FAILED and persisted; its siblings
// are unaffected. The outcome of a child is read from its StepExecution, so
// errors returned by the worker step are only logged. The returned error
// reports children whose outcome could not be recorded.
type TaskExecutorPartitionHandler struct {
	step         port.Step
	taskExecutor port.TaskExecutor
	repo         repository.JobRepository
	gridSize     int
}

// NewTaskExecutorPartitionHandler creates a handler running worker on executor.
func NewTaskExecutorPartitionHandler(worker port.Step, executor port.TaskExecutor, repo repository.JobRepository, gridSize int) *TaskExecutorPartitionHandler {
	if gridSize < 1 {
		gridSize = 1
	}
	return &TaskExecutorPartitionHandler{step: worker, taskExecutor: executor, repo: repo, gridSize: gridSize}
}

// Step returns the worker step.
func (h *TaskExecutorPartitionHandler) Step() port.Step { return h.step }

// GridSize returns the grid size requested from the splitter.
func (h *TaskExecutorPartitionHandler) GridSize() int { return h.gridSize }

// Handle implements PartitionHandler.
func (h *TaskExecutorPartitionHandler) Handle(ctx context.Context, splitter StepExecutionSplitter, master *model.StepExecution) ([]*model.StepExecution, error) {
	children, err := splitter.Split(ctx, master, h.gridSize)
	if err != nil {
		return nil, err
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	record := func(err error) {
		mu.Lock()
		result = multierror.Append(result, err)
		mu.Unlock()
	}

	for _, child := range children {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := h.runChild(ctx, child); err != nil {
				record(err)
			}
		}
		if err := h.taskExecutor.Execute(task); err != nil {
			wg.Done()
			logger.Warnf("Partition '%s' was not started: %v", child.StepName, err)
			if err := h.fail(ctx, child, RejectedExitDescription, err); err != nil {
				record(err)
			}
		}
	}
	wg.Wait()

	return children, result.ErrorOrNil()
}

// runChild executes the worker for child. A panic fails the child.
func (h *TaskExecutorPartitionHandler) runChild(ctx context.Context, child *model.StepExecution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			panicErr := exception.NewBatchErrorf("partition", "partition '%s' panicked: %v", child.StepName, r)
			logger.Errorf("%v", panicErr)
			err = h.fail(ctx, child, panicErr.Error(), panicErr)
		}
	}()
	if execErr := h.step.Execute(ctx, child); execErr != nil {
		logger.Debugf("Partition '%s' ended with %s: %v", child.StepName, child.Status, execErr)
	}
	return nil
}

// fail marks child FAILED with description and persists it.
func (h *TaskExecutorPartitionHandler) fail(ctx context.Context, child *model.StepExecution, description string, cause error) error {
	now := time.Now()
	child.Status = model.BatchStatusFailed
	child.ExitStatus = model.ExitStatusFailed.AddExitDescription(description)
	child.EndTime = &now
	child.AddFailure(cause)
	if err := h.repo.UpdateStepExecution(ctx, child); err != nil {
		return errors.Join(cause, err)
	}
	return nil
}

var _ PartitionHandler = (*TaskExecutorPartitionHandler)(nil)
