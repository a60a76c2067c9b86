// Package sql provides gorm-backed DAOs for the job repository. The schema is
// created by the embedded golang-migrate migrations (see Migrator).
package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// Store implements the four DAO interfaces on one database connection. Every
// call joins the transaction carried by its context, if any.
type Store struct {
	conn database.DBConnection
}

// NewStore creates a Store on conn.
func NewStore(conn database.DBConnection) *Store {
	return &Store{conn: conn}
}

// NewJobRepository creates a SimpleJobRepository backed by conn. Multi-row
// operations run in gorm transactions on the same connection.
func NewJobRepository(conn database.DBConnection) *repository.SimpleJobRepository {
	store := NewStore(conn)
	return repository.NewSimpleJobRepository(store, store, store, store,
		repository.WithTransactionManager(gormadapter.NewGormTransactionManager(conn)))
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.conn.DB(ctx)
}

// wrap turns a database error into a retryable BatchError.
func (s *Store) wrap(op string, err error, format string, args ...interface{}) error {
	if s.conn.Dialect().IsTableNotExistError(err) {
		return exception.NewBatchError(op, "job repository tables are missing; run the schema migrations first", err, false, false)
	}
	return exception.NewBatchError(op, fmt.Sprintf(format, args...), err, false, true)
}

var (
	_ repository.JobInstanceDao      = (*Store)(nil)
	_ repository.JobExecutionDao     = (*Store)(nil)
	_ repository.StepExecutionDao    = (*Store)(nil)
	_ repository.ExecutionContextDao = (*Store)(nil)
)
