package usecase

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ErrNoSuchJob is returned when no job is registered under a name.
var ErrNoSuchJob = errors.New("NoSuchJobException")

func init() {
	exception.RegisterErrorType(ErrNoSuchJob.Error(), ErrNoSuchJob)
}

// JobRegistry maps job names to job definitions.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]port.Job
}

// JobRegistryParams collects the jobs provided to the "jobs" value group.
type JobRegistryParams struct {
	fx.In
	Jobs []port.Job `group:"jobs"`
}

// NewJobRegistry creates a registry holding jobs.
func NewJobRegistry(jobs ...port.Job) *JobRegistry {
	r := &JobRegistry{jobs: make(map[string]port.Job, len(jobs))}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

func newJobRegistryFromGroup(p JobRegistryParams) *JobRegistry {
	return NewJobRegistry(p.Jobs...)
}

// Register adds job, replacing a job registered under the same name.
func (r *JobRegistry) Register(job port.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Name()]; ok {
		logger.Warnf("Job '%s' is already registered; replacing it.", job.Name())
	}
	r.jobs[job.Name()] = job
	logger.Debugf("Registered job '%s'.", job.Name())
}

// GetJob returns the job registered under name.
func (r *JobRegistry) GetJob(name string) (port.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[name]
	if !ok {
		return nil, exception.NewJobExecutionErrorf(ErrNoSuchJob, "no job registered under '%s'", name)
	}
	return job, nil
}

// JobNames returns the registered names in sorted order.
func (r *JobRegistry) JobNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
