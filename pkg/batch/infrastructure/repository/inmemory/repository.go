// Package inmemory provides map-backed DAOs for the job repository. State lives
// only as long as the process; it suits tests and single-run jobs that do not
// need to survive a crash.
package inmemory

import (
	"sync"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
)

type jobExecutionRecord struct {
	execution *model.JobExecution
	seq       int64
}

type stepExecutionRecord struct {
	execution *model.StepExecution
	seq       int64
}

// Store holds every record behind one mutex and implements all four DAO
// interfaces. Records are stored and returned as detached copies, so callers
// never share state with the store.
type Store struct {
	mu             sync.RWMutex
	seq            int64
	jobInstances   map[string]*model.JobInstance
	jobExecutions  map[string]*jobExecutionRecord
	stepExecutions map[string]*stepExecutionRecord
	jobContexts    map[string]map[string]interface{}
	stepContexts   map[string]map[string]interface{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		jobInstances:   make(map[string]*model.JobInstance),
		jobExecutions:  make(map[string]*jobExecutionRecord),
		stepExecutions: make(map[string]*stepExecutionRecord),
		jobContexts:    make(map[string]map[string]interface{}),
		stepContexts:   make(map[string]map[string]interface{}),
	}
}

// nextSeq returns a monotonically increasing insertion number. Callers hold mu.
func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// NewJobRepository creates a SimpleJobRepository backed by a fresh Store.
func NewJobRepository() *repository.SimpleJobRepository {
	store := NewStore()
	return repository.NewSimpleJobRepository(store, store, store, store,
		repository.WithTransactionManager(tx.NewNoOpTransactionManager()))
}

var (
	_ repository.JobInstanceDao      = (*Store)(nil)
	_ repository.JobExecutionDao     = (*Store)(nil)
	_ repository.StepExecutionDao    = (*Store)(nil)
	_ repository.ExecutionContextDao = (*Store)(nil)
)
