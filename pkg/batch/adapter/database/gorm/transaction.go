package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
)

type txKey struct{}

// TxFromContext returns the gorm transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	db, ok := ctx.Value(txKey{}).(*gorm.DB)
	return db, ok
}

// GormTransactionManager implements tx.TransactionManager on one connection.
// A Begin on a context that already carries a transaction joins it; only the
// outermost Commit or Rollback reaches the database.
type GormTransactionManager struct {
	conn database.DBConnection
}

// NewGormTransactionManager creates a transaction manager for conn.
func NewGormTransactionManager(conn database.DBConnection) *GormTransactionManager {
	return &GormTransactionManager{conn: conn}
}

// Begin implements tx.TransactionManager.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (context.Context, tx.Tx, error) {
	if _, ok := TxFromContext(ctx); ok {
		return ctx, joinedTx{}, nil
	}
	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	gormTx := m.conn.DB(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return ctx, nil, fmt.Errorf("failed to begin transaction on '%s': %w", m.conn.Name(), gormTx.Error)
	}
	return context.WithValue(ctx, txKey{}, gormTx), &gormTxAdapter{db: gormTx}, nil
}

type gormTxAdapter struct {
	db *gorm.DB
}

func (t *gormTxAdapter) Commit() error   { return t.db.Commit().Error }
func (t *gormTxAdapter) Rollback() error { return t.db.Rollback().Error }

// joinedTx participates in an outer transaction.
type joinedTx struct{}

func (joinedTx) Commit() error   { return nil }
func (joinedTx) Rollback() error { return nil }

var _ tx.TransactionManager = (*GormTransactionManager)(nil)
