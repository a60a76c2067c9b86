// Package task provides the port.TaskExecutor implementations used to run
// partitions and split flows.
package task

import (
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// SyncTaskExecutor runs every task on the calling goroutine.
type SyncTaskExecutor struct{}

// NewSyncTaskExecutor creates a SyncTaskExecutor.
func NewSyncTaskExecutor() *SyncTaskExecutor {
	return &SyncTaskExecutor{}
}

// Execute implements port.TaskExecutor. It returns after task has finished.
func (SyncTaskExecutor) Execute(task func()) error {
	task()
	return nil
}

// PoolTaskExecutor runs tasks on a bounded ants goroutine pool.
//
// Tasks submitted while every worker is busy wait for a free worker, unless
// the executor is non-blocking or the wait queue is full; those are rejected
// with exception.ErrTaskRejected. A task that itself submits to the same
// executor and waits for the result can exhaust the pool, so nested splits
// and partitions should use separate executors.
type PoolTaskExecutor struct {
	pool *ants.Pool
	size int
}

// PoolOption configures a PoolTaskExecutor.
type PoolOption func(*poolOptions)

type poolOptions struct {
	nonblocking      bool
	maxBlockingTasks int
}

// WithNonblocking rejects tasks immediately when no worker is free.
func WithNonblocking() PoolOption {
	return func(o *poolOptions) { o.nonblocking = true }
}

// WithMaxBlockingTasks limits how many submitters may wait for a worker.
// Zero means unlimited.
func WithMaxBlockingTasks(n int) PoolOption {
	return func(o *poolOptions) { o.maxBlockingTasks = n }
}

// NewPoolTaskExecutor creates an executor running at most size tasks at once.
func NewPoolTaskExecutor(size int, opts ...PoolOption) (*PoolTaskExecutor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("task executor pool size must be positive, got %d", size)
	}
	o := &poolOptions{}
	for _, opt := range opts {
		opt(o)
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(o.nonblocking),
		ants.WithMaxBlockingTasks(o.maxBlockingTasks),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Errorf("Task panicked on the pool executor: %v", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create goroutine pool: %w", err)
	}
	return &PoolTaskExecutor{pool: pool, size: size}, nil
}

// Execute implements port.TaskExecutor.
func (e *PoolTaskExecutor) Execute(task func()) error {
	err := e.pool.Submit(task)
	if err == nil {
		return nil
	}
	if errors.Is(err, ants.ErrPoolOverload) || errors.Is(err, ants.ErrPoolClosed) {
		return exception.NewBatchError("PoolTaskExecutor", fmt.Sprintf("task rejected: %v", err), exception.ErrTaskRejected, false, false)
	}
	return err
}

// Size returns the maximum number of concurrently running tasks.
func (e *PoolTaskExecutor) Size() int {
	return e.size
}

// Running returns the number of tasks currently running.
func (e *PoolTaskExecutor) Running() int {
	return e.pool.Running()
}

// Release stops the pool. Tasks submitted afterwards are rejected.
func (e *PoolTaskExecutor) Release() {
	e.pool.Release()
}

var (
	_ port.TaskExecutor = SyncTaskExecutor{}
	_ port.TaskExecutor = (*PoolTaskExecutor)(nil)
)
