package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ParquetWriterConfig configures a ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef names the storage connection files are uploaded to.
	StorageRef string `yaml:"storage_ref"`
	// Bucket overrides the default bucket of the connection.
	Bucket string `yaml:"bucket"`
	// OutputBaseDir is the object prefix of every file, e.g. "exports/orders".
	OutputBaseDir string `yaml:"output_base_dir"`
	// CompressionType is SNAPPY (default), GZIP or NONE.
	CompressionType string `yaml:"compression_type"`
}

// ParquetWriter uploads every chunk as one Parquet file per partition key,
// named "<base>/<key>/part-<n>.parquet". T must carry parquet struct tags.
//
// The part number is saved in the ExecutionContext under "<name>.part.count"
// on every commit. A restarted step therefore rewrites the file of the chunk
// that failed instead of adding a new one.
type ParquetWriter[T any] struct {
	name         string
	cfg          ParquetWriterConfig
	codec        parquet.CompressionCodec
	resolver     storage.ConnectionResolver
	partitionKey func(T) (string, error)

	conn  storage.Connection
	parts int
}

// NewParquetWriter creates a ParquetWriter. partitionKey may be nil, in
// which case all items of a chunk go to a single file below OutputBaseDir.
func NewParquetWriter[T any](name string, cfg ParquetWriterConfig, resolver storage.ConnectionResolver, partitionKey func(T) (string, error)) (*ParquetWriter[T], error) {
	if cfg.StorageRef == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires a storage_ref", name)
	}
	codec, err := compressionCodec(cfg.CompressionType)
	if err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s'", name), err, false, false)
	}
	if partitionKey == nil {
		partitionKey = func(T) (string, error) { return "", nil }
	}
	return &ParquetWriter[T]{name: name, cfg: cfg, codec: codec, resolver: resolver, partitionKey: partitionKey}, nil
}

func (w *ParquetWriter[T]) key() string { return w.name + ".part.count" }

// Open resolves the storage connection and restores the part number.
func (w *ParquetWriter[T]) Open(ctx context.Context, ec *model.ExecutionContext) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.cfg.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': failed to resolve storage '%s'", w.name, w.cfg.StorageRef), err, false, false)
	}
	w.conn = conn
	w.parts = ec.GetInt(w.key(), 0)
	return nil
}

// Write implements port.ItemWriter.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	if len(items) == 0 {
		return nil
	}
	if w.conn == nil {
		return exception.NewBatchErrorf("writer", "ParquetWriter '%s' is not open", w.name)
	}
	groups := make(map[string][]T)
	for _, item := range items {
		k, err := w.partitionKey(item)
		if err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': failed to derive partition key", w.name), err, false, false)
		}
		groups[k] = append(groups[k], item)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result *multierror.Error
	for _, k := range keys {
		object := path.Join(w.cfg.OutputBaseDir, k, fmt.Sprintf("part-%05d.parquet", w.parts))
		if err := w.upload(ctx, object, groups[k]); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		logger.Debugf("ParquetWriter '%s': uploaded %d rows to '%s'.", w.name, len(groups[k]), object)
	}
	if err := result.ErrorOrNil(); err != nil {
		return exception.NewBatchError("writer", fmt.Sprintf("ParquetWriter '%s': failed to write chunk %d", w.name, w.parts), err, false, false)
	}
	w.parts++
	return nil
}

func (w *ParquetWriter[T]) upload(ctx context.Context, object string, items []T) (err error) {
	buf := new(bytes.Buffer)
	pw, err := pqwriter.NewParquetWriterFromWriter(buf, new(T), 1)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer for '%s': %w", object, err)
	}
	pw.CompressionType = w.codec
	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return fmt.Errorf("failed to encode row for '%s': %w", object, err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parquet writer panicked finishing '%s': %v", object, r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish '%s': %w", object, err)
	}
	return w.conn.Upload(ctx, w.cfg.Bucket, object, buf, "application/vnd.apache.parquet")
}

// Update stores the part number.
func (w *ParquetWriter[T]) Update(ctx context.Context, ec *model.ExecutionContext) error {
	ec.Put(w.key(), w.parts)
	return nil
}

// Close implements port.ItemStream. The connection stays open; it belongs
// to its provider.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	w.conn = nil
	return nil
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "", "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	}
	return 0, fmt.Errorf("unsupported compression type '%s'", name)
}

var (
	_ port.ItemWriter[any] = (*ParquetWriter[any])(nil)
	_ port.ItemStream      = (*ParquetWriter[any])(nil)
)
