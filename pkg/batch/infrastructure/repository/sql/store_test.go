package sql_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	reposql "github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

func openSQLite(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open("metadata", dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "batch.db"),
		LogLevel: "silent",
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	}, sqlite.Dialect{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func migratedRepository(t *testing.T) (*repository.SimpleJobRepository, *gormadapter.GormDBAdapter) {
	t.Helper()
	conn := openSQLite(t)
	require.NoError(t, reposql.NewMigrator(conn).Up(context.Background()))
	return reposql.NewJobRepository(conn), conn
}

func params(run int64) model.JobParameters {
	return model.NewJobParametersBuilder().AddLong("run.id", run).ToJobParameters()
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	migrator := reposql.NewMigrator(openSQLite(t))

	_, _, ok, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx))

	version, dirty, ok, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	require.NoError(t, migrator.Down(ctx))
	_, _, ok, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MissingTablesAreNotRetryable(t *testing.T) {
	store := reposql.NewStore(openSQLite(t))

	_, err := store.GetJobNames(context.Background())
	require.Error(t, err)
	var be *exception.BatchError
	require.ErrorAs(t, err, &be)
	assert.False(t, be.IsRetryable())
}

func TestStore_DuplicateJobInstance(t *testing.T) {
	ctx := context.Background()
	_, conn := migratedRepository(t)
	store := reposql.NewStore(conn)

	first, err := store.CreateJobInstance(ctx, "job", params(1))
	require.NoError(t, err)
	_, err = store.CreateJobInstance(ctx, "job", params(1))
	assert.ErrorIs(t, err, repository.ErrJobInstanceExists)

	found, err := store.GetJobInstance(ctx, "job", params(1))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
	assert.True(t, found.Parameters.Equal(params(1)))

	byID, err := store.GetJobInstanceByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "job", byID.JobName)

	missing, err := store.GetJobInstance(ctx, "job", params(2))
	require.NoError(t, err)
	assert.Nil(t, missing)

	names, err := store.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, names)
}

func TestJobRepository_RestartReusesPersistedState(t *testing.T) {
	ctx := context.Background()
	repo, _ := migratedRepository(t)

	je, err := repo.CreateJobExecution(ctx, "job", params(1))
	require.NoError(t, err)
	je.StartTime = time.Now()
	je.SetStatus(model.BatchStatusStarted)
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	se := je.CreateStepExecution("step")
	se.StartTime = time.Now().Add(-time.Minute)
	require.NoError(t, repo.AddStepExecution(ctx, se))

	se.ReadCount = 25
	se.CommitCount = 3
	se.ExecutionContext.Put("reader.offset", 25)
	require.NoError(t, repo.UpdateStepExecutionContext(ctx, se))
	se.Status = model.BatchStatusFailed
	se.ExitStatus = model.ExitStatusFailed
	se.AddFailure(assert.AnError)
	require.NoError(t, repo.UpdateStepExecution(ctx, se))

	je.ExecutionContext.Put("cursor", 42)
	require.NoError(t, repo.UpdateJobExecutionContext(ctx, je))
	end := time.Now()
	je.EndTime = &end
	je.SetStatus(model.BatchStatusFailed)
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	restarted, err := repo.CreateJobExecution(ctx, "job", params(1))
	require.NoError(t, err)
	assert.Equal(t, je.JobInstanceID, restarted.JobInstanceID)
	assert.Equal(t, 42, restarted.ExecutionContext.GetInt("cursor", 0))

	last, err := repo.GetLastStepExecution(ctx, restarted.JobInstance, "step")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, se.ID, last.ID)
	assert.Equal(t, model.BatchStatusFailed, last.Status)
	assert.Equal(t, int64(25), last.ReadCount)
	assert.Equal(t, 25, last.ExecutionContext.GetInt("reader.offset", 0))
	assert.Len(t, last.Failures, 1)
	require.NotNil(t, last.JobExecution)
	assert.Equal(t, je.ID, last.JobExecution.ID)

	count, err := repo.GetStepExecutionCount(ctx, restarted.JobInstance, "step")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, model.BatchStatusFailed, loaded.GetStatus())
	require.NotNil(t, loaded.EndTime)
	require.Len(t, loaded.GetStepExecutions(), 1)
}

func TestJobRepository_CompletedInstanceCannotRerun(t *testing.T) {
	ctx := context.Background()
	repo, _ := migratedRepository(t)

	je, err := repo.CreateJobExecution(ctx, "job", params(1))
	require.NoError(t, err)
	end := time.Now()
	je.EndTime = &end
	je.SetStatus(model.BatchStatusCompleted)
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	_, err = repo.CreateJobExecution(ctx, "job", params(1))
	assert.ErrorIs(t, err, exception.ErrJobInstanceAlreadyComplete)
}

func TestStore_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo, conn := migratedRepository(t)
	store := reposql.NewStore(conn)

	je, err := repo.CreateJobExecution(ctx, "job", params(1))
	require.NoError(t, err)
	stale, err := store.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	require.NotNil(t, stale)

	je.SetStatus(model.BatchStatusStopping)
	require.NoError(t, store.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	stale.SetStatus(model.BatchStatusStarted)
	err = store.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	require.NoError(t, store.SynchronizeStatus(ctx, stale))
	assert.Equal(t, model.BatchStatusStopping, stale.GetStatus())
	assert.Equal(t, 1, stale.Version)
	require.NoError(t, store.UpdateJobExecution(ctx, stale))

	ghost := model.NewJobExecution(je.JobInstance, params(1))
	err = store.UpdateJobExecution(ctx, ghost)
	assert.ErrorIs(t, err, exception.ErrJobExecutionNotFound)
}

func TestStore_RunningExecutionsAndContextsUpsert(t *testing.T) {
	ctx := context.Background()
	repo, conn := migratedRepository(t)
	store := reposql.NewStore(conn)

	je, err := repo.CreateJobExecution(ctx, "job", params(1))
	require.NoError(t, err)

	running, err := store.FindRunningJobExecutions(ctx, "job")
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, je.ID, running[0].ID)

	children := []*model.StepExecution{je.CreateStepExecution("step:partition0"), je.CreateStepExecution("step:partition1")}
	for i, se := range children {
		se.ExecutionContext.Put("index", i)
	}
	require.NoError(t, repo.AddStepExecutions(ctx, children))

	children[1].ExecutionContext.Put("index", 7)
	require.NoError(t, store.SaveStepExecutionContexts(ctx, children))
	ec, err := store.GetStepExecutionContext(ctx, children[1])
	require.NoError(t, err)
	assert.Equal(t, 7, ec.GetInt("index", -1))

	steps, err := store.GetStepExecutions(ctx, je)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}
