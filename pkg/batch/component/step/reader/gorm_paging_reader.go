// Package reader provides database-backed item readers.
package reader

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// DefaultPageSize is used when NewGormPagingReader gets a page size below 1.
const DefaultPageSize = 100

// GormPagingReader reads rows of T page by page. The query must have a
// stable order, so a restarted step that skips the committed rows by offset
// sees the same rows again. The number of rows read is saved in the
// ExecutionContext under "<name>.read.count".
type GormPagingReader[T any] struct {
	conn     database.DBConnection
	name     string
	pageSize int
	query    func(db *gorm.DB) *gorm.DB

	offset int
	page   []T
	next   int
	done   bool
}

// NewGormPagingReader creates a reader over the rows returned by query. query
// receives a session on conn and must add at least an Order clause, e.g.
//
//	func(db *gorm.DB) *gorm.DB { return db.Model(&Order{}).Where("state = ?", "open").Order("id") }
func NewGormPagingReader[T any](conn database.DBConnection, name string, pageSize int, query func(db *gorm.DB) *gorm.DB) *GormPagingReader[T] {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &GormPagingReader[T]{conn: conn, name: name, pageSize: pageSize, query: query}
}

func (r *GormPagingReader[T]) key() string { return r.name + ".read.count" }

// Open restores the read position of a previous execution.
func (r *GormPagingReader[T]) Open(ctx context.Context, ec *model.ExecutionContext) error {
	r.offset = ec.GetInt(r.key(), 0)
	r.page, r.next, r.done = nil, 0, false
	if r.offset > 0 {
		logger.Infof("GormPagingReader '%s': resuming after %d rows.", r.name, r.offset)
	}
	return nil
}

// Read returns the next row, or port.ErrNoMoreItems after the last one.
func (r *GormPagingReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if r.next >= len(r.page) {
		if r.done {
			return zero, port.ErrNoMoreItems
		}
		if err := r.fetch(ctx); err != nil {
			return zero, err
		}
		if len(r.page) == 0 {
			return zero, port.ErrNoMoreItems
		}
	}
	item := r.page[r.next]
	r.next++
	r.offset++
	return item, nil
}

func (r *GormPagingReader[T]) fetch(ctx context.Context) error {
	var rows []T
	err := r.query(r.conn.DB(ctx)).Offset(r.offset).Limit(r.pageSize).Find(&rows).Error
	if err != nil {
		return exception.NewBatchError("reader", fmt.Sprintf("GormPagingReader '%s': failed to read page at offset %d", r.name, r.offset), err, false, true)
	}
	logger.Debugf("GormPagingReader '%s': fetched %d rows at offset %d.", r.name, len(rows), r.offset)
	r.page, r.next = rows, 0
	r.done = len(rows) < r.pageSize
	return nil
}

// Update stores the read position.
func (r *GormPagingReader[T]) Update(ctx context.Context, ec *model.ExecutionContext) error {
	ec.Put(r.key(), r.offset)
	return nil
}

// Close drops the buffered page.
func (r *GormPagingReader[T]) Close(ctx context.Context) error {
	r.page = nil
	return nil
}

var (
	_ port.ItemReader[any] = (*GormPagingReader[any])(nil)
	_ port.ItemStream      = (*GormPagingReader[any])(nil)
)
