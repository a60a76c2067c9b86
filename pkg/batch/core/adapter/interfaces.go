// Package adapter holds what every named resource connection has in common.
package adapter

// ResourceConnection is a named, closable connection to an external resource
// such as a database or an object store.
type ResourceConnection interface {
	// Close releases the connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "local").
	Type() string
	// Name returns the connection name (e.g., "metadata", "reports").
	Name() string
}
