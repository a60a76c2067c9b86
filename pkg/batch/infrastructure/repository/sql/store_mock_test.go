package sql

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	mysqldialect "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, mysqldialect.Dialect{}, "metadata")
	require.NoError(t, err)
	return NewStore(conn), mock
}

func TestUpdateJobExecution_StaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	instance := model.NewJobInstance("job", model.NewJobParameters())
	je := model.NewJobExecution(instance, model.NewJobParameters())
	je.Version = 3

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `batch_job_execution` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `batch_job_execution`")).
		WithArgs(je.ID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := store.UpdateJobExecution(context.Background(), je)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.Equal(t, 3, je.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobExecution_BumpsVersion(t *testing.T) {
	store, mock := newMockStore(t)
	instance := model.NewJobInstance("job", model.NewJobParameters())
	je := model.NewJobExecution(instance, model.NewJobParameters())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `batch_job_execution` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateJobExecution(context.Background(), je))
	assert.Equal(t, 1, je.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobInstance_ConflictIsReported(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `batch_job_instance`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.CreateJobInstance(context.Background(), "job", model.NewJobParameters())
	assert.ErrorIs(t, err, repository.ErrJobInstanceExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
