// Package storage defines object storage connections used by steps that
// publish or consume files. Objects are addressed by bucket and object name;
// backends decide what a bucket is.
package storage

import (
	"context"
	"io"

	coreadapter "github.com/tigerroll/tidebatch/pkg/batch/core/adapter"
)

// Executor defines the object operations of a storage connection.
type Executor interface {
	// Upload stores data under bucket/objectName, replacing any existing object.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object of bucket whose name starts with prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// Connection is a named, closable storage connection.
type Connection interface {
	coreadapter.ResourceConnection
	Executor
}

// Provider opens connections of one storage type.
type Provider interface {
	// Type returns the storage type the provider serves, e.g. "local".
	Type() string
	// GetConnection returns the connection configured under name, opening it on first use.
	GetConnection(name string) (Connection, error)
	// CloseAll closes every connection opened by the provider.
	CloseAll() error
}

// ConnectionResolver resolves a configured connection name to a Connection.
type ConnectionResolver interface {
	ResolveStorageConnection(ctx context.Context, name string) (Connection, error)
}

// ProviderGroup is the fx value group storage providers are collected from.
const ProviderGroup = "storageProviders"
