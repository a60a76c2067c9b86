package partition

import (
	"context"
	"sort"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// StepNameSeparator joins the step name and the partition name of a child.
const StepNameSeparator = ":"

// GridSizeKey is the master context key holding the grid size of the first
// execution. A restart keeps it so the partitions keep their names.
const GridSizeKey = "SimpleStepExecutionSplitter.GRID_SIZE"

// StepExecutionSplitter creates the child StepExecutions of a master.
type StepExecutionSplitter interface {
	// StepName returns the name of the partitioned step.
	StepName() string
	// Split creates and persists the children of master that have to run,
	// ordered by name.
	Split(ctx context.Context, master *model.StepExecution, gridSize int) ([]*model.StepExecution, error)
}

// SimpleStepExecutionSplitter splits with a Partitioner and applies the step
// restart rules to every child.
type SimpleStepExecutionSplitter struct {
	repo                 repository.JobRepository
	stepName             string
	allowStartIfComplete bool
	partitioner          Partitioner
}

// NewSimpleStepExecutionSplitter creates a splitter for the step named stepName.
func NewSimpleStepExecutionSplitter(repo repository.JobRepository, stepName string, allowStartIfComplete bool, partitioner Partitioner) *SimpleStepExecutionSplitter {
	return &SimpleStepExecutionSplitter{
		repo:                 repo,
		stepName:             stepName,
		allowStartIfComplete: allowStartIfComplete,
		partitioner:          partitioner,
	}
}

// StepName implements StepExecutionSplitter.
func (s *SimpleStepExecutionSplitter) StepName() string { return s.stepName }

// Split implements StepExecutionSplitter.
func (s *SimpleStepExecutionSplitter) Split(ctx context.Context, master *model.StepExecution, gridSize int) ([]*model.StepExecution, error) {
	je := master.JobExecution
	contexts, err := s.contexts(ctx, master, gridSize)
	if err != nil {
		return nil, err
	}

	restart := master.ExecutionContext.GetBool(model.ContextKeyRestart, false)

	names := make([]string, 0, len(contexts))
	for name := range contexts {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]*model.StepExecution, 0, len(names))
	for _, name := range names {
		childName := s.stepName + StepNameSeparator + name
		last, err := s.repo.GetLastStepExecution(ctx, je.JobInstance, childName)
		if err != nil {
			return nil, err
		}
		startable, err := step.IsStartable(last, je, s.allowStartIfComplete)
		if err != nil {
			return nil, err
		}
		if !startable {
			continue
		}

		child := model.NewStepExecution(childName, je)
		if step.IsRestartOf(last) {
			step.AdoptContext(child, last)
		} else if ec := contexts[name]; ec != nil {
			child.ExecutionContext = ec
		}
		if restart {
			child.ExecutionContext.Put(model.ContextKeyRestart, true)
		}
		children = append(children, child)
	}

	if err := s.repo.AddStepExecutions(ctx, children); err != nil {
		return nil, exception.NewBatchError("partition", "failed to save partition step executions", err, false, false)
	}
	for _, child := range children {
		je.AddStepExecution(child)
	}
	logger.Infof("Step '%s': split into %d partitions, %d to run.", s.stepName, len(names), len(children))
	return children, nil
}

// contexts returns the partition contexts for master. The grid size of the
// first execution is kept in the master context; when it is already stored,
// a PartitionNameProvider only needs to name the partitions because their
// contexts are re-adopted from the previous children.
func (s *SimpleStepExecutionSplitter) contexts(ctx context.Context, master *model.StepExecution, gridSize int) (map[string]*model.ExecutionContext, error) {
	ec := master.ExecutionContext
	splitSize := ec.GetInt(GridSizeKey, gridSize)
	if !ec.ContainsKey(GridSizeKey) {
		ec.Put(GridSizeKey, splitSize)
	}

	if ec.IsDirty() {
		if err := s.repo.UpdateStepExecutionContext(ctx, master); err != nil {
			return nil, err
		}
		return s.partition(ctx, splitSize)
	}
	if provider, ok := s.partitioner.(PartitionNameProvider); ok {
		result := map[string]*model.ExecutionContext{}
		for _, name := range provider.GetPartitionNames(splitSize) {
			result[name] = model.NewExecutionContext()
		}
		return result, nil
	}
	return s.partition(ctx, splitSize)
}

func (s *SimpleStepExecutionSplitter) partition(ctx context.Context, gridSize int) (map[string]*model.ExecutionContext, error) {
	contexts, err := s.partitioner.Partition(ctx, gridSize)
	if err != nil {
		return nil, exception.NewBatchError("partition", "partitioner failed", err, false, false)
	}
	return contexts, nil
}

var _ StepExecutionSplitter = (*SimpleStepExecutionSplitter)(nil)
