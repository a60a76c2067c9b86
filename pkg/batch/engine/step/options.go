package step

import (
	"database/sql"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
)

// Option configures a Base.
type Option func(*Base)

// WithAllowStartIfComplete lets the step run again on restart after it completed.
func WithAllowStartIfComplete(allow bool) Option {
	return func(b *Base) { b.allowStartIfComplete = allow }
}

// WithStartLimit caps how many times the step may start for one job instance.
// Zero means unlimited.
func WithStartLimit(limit int) Option {
	return func(b *Base) { b.startLimit = limit }
}

// WithListeners registers step execution listeners.
func WithListeners(listeners ...port.StepExecutionListener) Option {
	return func(b *Base) { b.listeners = append(b.listeners, listeners...) }
}

// WithChunkListeners registers chunk listeners.
func WithChunkListeners(listeners ...port.ChunkListener) Option {
	return func(b *Base) { b.chunkListeners = append(b.chunkListeners, listeners...) }
}

// WithStreams registers item streams.
func WithStreams(streams ...port.ItemStream) Option {
	return func(b *Base) { b.streams = append(b.streams, streams...) }
}

// WithPromotion promotes step context keys into the job context when the step completes.
func WithPromotion(promotion *ExecutionContextPromotion) Option {
	return func(b *Base) { b.promotion = promotion }
}

// WithTracer reports step spans to tracer.
func WithTracer(tracer metrics.Tracer) Option {
	return func(b *Base) {
		if tracer != nil {
			b.tracer = tracer
		}
	}
}

// WithTransactionManager overrides the transaction manager taken from the
// job repository.
func WithTransactionManager(tm tx.TransactionManager) Option {
	return func(b *Base) { b.txManager = tm }
}

// WithTransactionOptions sets the isolation level and read-only flag of chunk
// transactions.
func WithTransactionOptions(opts *sql.TxOptions) Option {
	return func(b *Base) { b.txOptions = opts }
}

// ParseIsolationLevel converts a configured isolation level name to
// sql.IsolationLevel. Unknown names map to the database default.
func ParseIsolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "READ_UNCOMMITTED":
		return sql.LevelReadUncommitted
	case "READ_COMMITTED":
		return sql.LevelReadCommitted
	case "WRITE_COMMITTED":
		return sql.LevelWriteCommitted
	case "REPEATABLE_READ":
		return sql.LevelRepeatableRead
	case "SERIALIZABLE":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}
