// Package tx abstracts transaction demarcation for the job repository and for
// chunk commits. Implementations carry the active transaction in the context so
// that code running inside Begin/Commit joins it instead of opening another.
package tx

import (
	"context"
	"database/sql"
	"errors"
)

// Tx is an ongoing transaction.
type Tx interface {
	// Commit makes the changes durable. A transaction that joined an outer one
	// leaves the decision to the outer transaction.
	Commit() error
	// Rollback discards the changes.
	Rollback() error
}

// TransactionManager starts transactions.
type TransactionManager interface {
	// Begin starts a transaction, or joins the one already carried by ctx.
	//
	// Parameters:
	//
	//	ctx: The context of the caller. It may already carry a transaction.
	//	opts: Optional isolation and read-only settings. Ignored when joining.
	//
	// Returns:
	//
	//	A context carrying the transaction, the transaction, and an error if it could not be started.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (context.Context, Tx, error)
}

// Execute runs fn inside a transaction from tm. The transaction is committed
// when fn returns nil and rolled back otherwise; a rollback error is joined
// to the error of fn.
func Execute(ctx context.Context, tm TransactionManager, fn func(ctx context.Context) error) error {
	txCtx, t, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return t.Commit()
}

// NoOpTransactionManager provides transaction demarcation for stores that have
// no transactions of their own, such as the in-memory repository.
type NoOpTransactionManager struct{}

// NewNoOpTransactionManager creates a NoOpTransactionManager.
func NewNoOpTransactionManager() *NoOpTransactionManager {
	return &NoOpTransactionManager{}
}

// Begin implements TransactionManager.
func (m *NoOpTransactionManager) Begin(ctx context.Context, _ ...*sql.TxOptions) (context.Context, Tx, error) {
	return ctx, noOpTx{}, nil
}

type noOpTx struct{}

func (noOpTx) Commit() error   { return nil }
func (noOpTx) Rollback() error { return nil }

var _ TransactionManager = (*NoOpTransactionManager)(nil)
