package generic

import (
	"context"
	"math/rand/v2"
	"sync"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// RandomFailTasklet fails on purpose, either for the first failCount runs or
// with probability failRate. It is used to exercise restart handling.
type RandomFailTasklet struct {
	id        string
	failRate  float64
	failCount int

	mu         sync.Mutex
	rnd        *rand.Rand
	currentRun int
}

// RandomFailOption configures a RandomFailTasklet.
type RandomFailOption func(*RandomFailTasklet)

// WithFailRate sets the failure probability (0.0 - 1.0). The default is 0.5.
func WithFailRate(rate float64) RandomFailOption {
	return func(t *RandomFailTasklet) { t.failRate = rate }
}

// WithFailCount makes the tasklet fail on its first count runs and succeed
// afterwards. A positive count disables the probabilistic mode.
func WithFailCount(count int) RandomFailOption {
	return func(t *RandomFailTasklet) { t.failCount = count }
}

// WithRand sets the random source used in probabilistic mode.
func WithRand(rnd *rand.Rand) RandomFailOption {
	return func(t *RandomFailTasklet) { t.rnd = rnd }
}

// NewRandomFailTasklet creates a RandomFailTasklet.
func NewRandomFailTasklet(id string, opts ...RandomFailOption) *RandomFailTasklet {
	t := &RandomFailTasklet{id: id, failRate: 0.5}
	for _, opt := range opts {
		opt(t)
	}
	if t.rnd == nil {
		t.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return t
}

// Runs returns how often Execute has been called.
func (t *RandomFailTasklet) Runs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentRun
}

// Execute implements tasklet.Tasklet.
func (t *RandomFailTasklet) Execute(_ context.Context, _ *model.StepContribution, _ *model.ChunkContext) (tasklet.RepeatStatus, error) {
	t.mu.Lock()
	t.currentRun++
	run := t.currentRun
	var shouldFail bool
	if t.failCount > 0 {
		shouldFail = run <= t.failCount
	} else {
		shouldFail = t.rnd.Float64() < t.failRate
	}
	t.mu.Unlock()

	if shouldFail {
		logger.Errorf("RandomFailTasklet '%s' (Run %d): Intentionally failing (Rate: %.2f, Count: %d).", t.id, run, t.failRate, t.failCount)
		return tasklet.Failed, exception.NewBatchErrorf(t.id, "random failure occurred on run %d", run, false, false)
	}
	logger.Infof("RandomFailTasklet '%s' (Run %d): Completed successfully.", t.id, run)
	return tasklet.Finished, nil
}

var _ tasklet.Tasklet = (*RandomFailTasklet)(nil)
