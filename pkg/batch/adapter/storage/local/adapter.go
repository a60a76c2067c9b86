// Package local stores objects as files below a base directory. A bucket is
// a subdirectory of the base directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	storageconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ProviderType is the storage type served by this package.
const ProviderType = "local"

// Connection is a storage.Connection on the local file system.
type Connection struct {
	cfg  storageconfig.StorageConfig
	name string
}

// NewConnection creates a Connection rooted at cfg.BaseDir, creating the
// directory if it does not exist.
func NewConnection(cfg storageconfig.StorageConfig, name string) (*Connection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage '%s': base_dir must be set", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage '%s': failed to create base_dir '%s': %w", name, cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage '%s': failed to stat base_dir '%s': %w", name, cfg.BaseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage '%s': base_dir '%s' is not a directory", name, cfg.BaseDir)
	}
	return &Connection{cfg: cfg, name: name}, nil
}

// Name implements storage.Connection.
func (c *Connection) Name() string { return c.name }

// Type implements storage.Connection.
func (c *Connection) Type() string { return ProviderType }

// Close implements storage.Connection. A local connection holds no resources.
func (c *Connection) Close() error { return nil }

// Upload implements storage.Executor.
func (c *Connection) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	path, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", path, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close '%s': %w", path, err)
	}
	logger.Debugf("Local storage '%s': uploaded '%s'.", c.name, path)
	return nil
}

// Download implements storage.Executor.
func (c *Connection) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	path, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	return f, nil
}

// ListObjects implements storage.Executor. Object names are slash separated
// and relative to the bucket.
func (c *Connection) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	root, err := c.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return ctx.Err()
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		return fn(name)
	})
}

// DeleteObject implements storage.Executor.
func (c *Connection) DeleteObject(ctx context.Context, bucket, objectName string) error {
	path, err := c.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete '%s': %w", path, err)
	}
	return nil
}

// resolvePath maps bucket/objectName below the base directory and rejects
// names that escape it.
func (c *Connection) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = c.cfg.BucketName
	}
	base, err := filepath.Abs(c.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base_dir '%s': %w", c.cfg.BaseDir, err)
	}
	path := filepath.Join(base, bucket, objectName)
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object '%s/%s' is outside of base_dir '%s'", bucket, objectName, c.cfg.BaseDir)
	}
	return path, nil
}

// Provider opens local connections configured in the "storage" section.
type Provider struct {
	cfg         *config.Config
	mu          sync.Mutex
	connections map[string]*Connection
}

// NewProvider creates a Provider.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{cfg: cfg, connections: make(map[string]*Connection)}
}

// Type implements storage.Provider.
func (p *Provider) Type() string { return ProviderType }

// GetConnection implements storage.Provider.
func (p *Provider) GetConnection(name string) (storage.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	sc, err := storage.LookupStorageConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if sc.Type != ProviderType {
		return nil, fmt.Errorf("storage '%s' has type '%s', expected '%s'", name, sc.Type, ProviderType)
	}
	conn, err := NewConnection(sc, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Debugf("Opened local storage connection '%s' at '%s'.", name, sc.BaseDir)
	return conn, nil
}

// CloseAll implements storage.Provider.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("local storage '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

var (
	_ storage.Connection = (*Connection)(nil)
	_ storage.Provider   = (*Provider)(nil)
)
