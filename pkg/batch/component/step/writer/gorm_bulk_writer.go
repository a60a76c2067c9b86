// Package writer provides item writers that persist chunks to a database or
// to object storage.
package writer

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// GormBulkWriter inserts each chunk in batches of bulkSize rows. With
// conflict columns the insert becomes an upsert: updateColumns are
// overwritten on conflict, or the row is left alone when none are given.
//
// Writes go through conn.DB(ctx), so they join the chunk transaction when the
// step commits with the gorm TransactionManager of the same connection.
type GormBulkWriter[T any] struct {
	conn            database.DBConnection
	name            string
	table           string
	bulkSize        int
	conflictColumns []string
	updateColumns   []string
}

// NewGormBulkWriter creates a writer into table. An empty table uses the
// table gorm derives from T.
func NewGormBulkWriter[T any](conn database.DBConnection, name, table string, bulkSize int) *GormBulkWriter[T] {
	if bulkSize < 1 {
		bulkSize = 100
	}
	return &GormBulkWriter[T]{conn: conn, name: name, table: table, bulkSize: bulkSize}
}

// OnConflict turns the insert into an upsert on conflictColumns.
func (w *GormBulkWriter[T]) OnConflict(conflictColumns []string, updateColumns ...string) *GormBulkWriter[T] {
	w.conflictColumns = conflictColumns
	w.updateColumns = updateColumns
	return w
}

// Write implements port.ItemWriter.
func (w *GormBulkWriter[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	db := w.conn.DB(ctx)
	if w.table != "" {
		db = db.Table(w.table)
	}
	if len(w.conflictColumns) > 0 {
		onConflict := clause.OnConflict{}
		for _, c := range w.conflictColumns {
			onConflict.Columns = append(onConflict.Columns, clause.Column{Name: c})
		}
		if len(w.updateColumns) > 0 {
			onConflict.DoUpdates = clause.AssignmentColumns(w.updateColumns)
		} else {
			onConflict.DoNothing = true
		}
		db = db.Clauses(onConflict)
	}
	if err := db.CreateInBatches(items, w.bulkSize).Error; err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("GormBulkWriter '%s': failed to write %d items", w.name, len(items)), err, false, false)
	}
	logger.Debugf("GormBulkWriter '%s': wrote %d items.", w.name, len(items))
	return nil
}

var _ port.ItemWriter[any] = (*GormBulkWriter[any])(nil)
