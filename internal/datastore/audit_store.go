package datastore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// FileUpdateRecord is one applied-file event in the audit trail.
type FileUpdateRecord struct {
	Path            string    `parquet:"path"`
	ManifestVersion string    `parquet:"manifest_version,optional"`
	OldDigest       string    `parquet:"old_digest,optional"`
	NewDigest       string    `parquet:"new_digest,optional"`
	SizeBytes       int64     `parquet:"size_bytes"`
	RequiresRestart bool      `parquet:"requires_restart"`
	Outcome         string    `parquet:"outcome"`
	LinesAdded      int32     `parquet:"lines_added"`
	LinesRemoved    int32     `parquet:"lines_removed"`
	AppliedAt       time.Time `parquet:"applied_at,timestamp"`
}

// AuditStore persists applied-file events to a single Parquet file.
// Records are kept newest first; every append rewrites the file.
type AuditStore struct {
	path   string
	codec  string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewAuditStore creates an audit store writing to path with the given
// compression codec (zstd, snappy or gzip).
func NewAuditStore(path, codec string, logger zerolog.Logger) *AuditStore {
	return &AuditStore{
		path:   path,
		codec:  codec,
		logger: logger.With().Str("component", "AuditStore").Logger(),
	}
}

// Append prepends the given records to the audit trail.
func (as *AuditStore) Append(ctx context.Context, records []FileUpdateRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	existing, err := as.load()
	if err != nil {
		return err
	}

	merged := make([]FileUpdateRecord, 0, len(records)+len(existing))
	merged = append(merged, records...)
	merged = append(merged, existing...)

	if err := as.rewrite(merged); err != nil {
		return err
	}

	as.logger.Info().
		Int("records_appended", len(records)).
		Int("records_total", len(merged)).
		Str("file_path", as.path).
		Msg("Appended records to update audit trail")
	return nil
}

// Query returns up to limit audit records, newest first. A limit <= 0
// returns everything.
func (as *AuditStore) Query(ctx context.Context, limit int) ([]FileUpdateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	records, err := as.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (as *AuditStore) load() ([]FileUpdateRecord, error) {
	if _, err := os.Stat(as.path); os.IsNotExist(err) {
		return []FileUpdateRecord{}, nil
	}

	file, err := os.Open(as.path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to open audit parquet file: "+as.path)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[FileUpdateRecord](file)
	defer reader.Close()

	records := make([]FileUpdateRecord, 0)
	for {
		batch := make([]FileUpdateRecord, 100)
		n, readErr := reader.Read(batch)
		if n > 0 {
			records = append(records, batch[:n]...)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, errorwrapper.WrapError(readErr, "failed to read audit parquet file: "+as.path)
		}
	}
	return records, nil
}

func (as *AuditStore) rewrite(records []FileUpdateRecord) error {
	if err := os.MkdirAll(filepath.Dir(as.path), 0755); err != nil {
		return errorwrapper.WrapError(err, "failed to create audit directory")
	}

	file, err := os.Create(as.path)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to create audit parquet file: "+as.path)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[FileUpdateRecord](file, as.compressionOption())
	if _, err := writer.Write(records); err != nil {
		_ = writer.Close()
		return errorwrapper.WrapError(err, "failed to write audit records")
	}
	return writer.Close()
}

func (as *AuditStore) compressionOption() parquet.WriterOption {
	switch as.codec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "zstd":
		return parquet.Compression(&parquet.Zstd)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}
