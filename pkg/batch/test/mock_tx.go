package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	tx "github.com/tigerroll/tidebatch/pkg/batch/core/tx"
)

// MockTx is a testify mock of tx.Tx.
type MockTx struct {
	mock.Mock
}

// Commit mocks tx.Tx.Commit.
func (m *MockTx) Commit() error {
	return m.Called().Error(0)
}

// Rollback mocks tx.Tx.Rollback.
func (m *MockTx) Rollback() error {
	return m.Called().Error(0)
}

// MockTxManager is a testify mock of tx.TransactionManager. Begin returns the
// incoming context unchanged.
type MockTxManager struct {
	mock.Mock
}

// Begin mocks tx.TransactionManager.Begin.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (context.Context, tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return ctx, nil, args.Error(1)
	}
	return ctx, args.Get(0).(tx.Tx), args.Error(1)
}

var (
	_ tx.Tx                 = (*MockTx)(nil)
	_ tx.TransactionManager = (*MockTxManager)(nil)
)
