package ledger

import (
	"encoding/json"
	"os"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/filemanager"
	"github.com/rs/zerolog"
)

const timestampLayout = "2006-01-02 15:04:05"

// HashLedger is the persisted record of tracked file digests after the
// last successful update.
type HashLedger struct {
	Version          string            `json:"version"`
	UpdatedAt        string            `json:"updated_at"`
	TotalFiles       int               `json:"total_files"`
	Files            map[string]string `json:"files"`
	LastUpdatedFiles []string          `json:"last_updated_files,omitempty"`
	LastUpdatedCount int               `json:"last_updated_count,omitempty"`
}

// BuildLedger constructs a ledger snapshot from a scan result and the
// list of files the run just applied.
func BuildLedger(version string, digests map[string]string, lastUpdated []string) *HashLedger {
	return &HashLedger{
		Version:          version,
		UpdatedAt:        time.Now().Format(timestampLayout),
		TotalFiles:       len(digests),
		Files:            digests,
		LastUpdatedFiles: lastUpdated,
		LastUpdatedCount: len(lastUpdated),
	}
}

// Store persists the hash ledger as JSON at a fixed path.
type Store struct {
	path        string
	fileManager *filemanager.FileManager
	logger      zerolog.Logger
}

// NewStore creates a ledger store writing to path
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:        path,
		fileManager: filemanager.NewFileManager(logger),
		logger:      logger.With().Str("component", "LedgerStore").Logger(),
	}
}

// Load reads the persisted ledger. A missing file returns ErrNoBaseline
// so callers can distinguish "never updated" from a broken ledger.
func (s *Store) Load() (*HashLedger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorwrapper.ErrNoBaseline
		}
		return nil, errorwrapper.WrapError(err, "failed to read hash ledger: "+s.path)
	}

	var ledger HashLedger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, errorwrapper.WrapError(err, "failed to decode hash ledger: "+s.path)
	}
	if ledger.Files == nil {
		ledger.Files = make(map[string]string)
	}
	return &ledger, nil
}

// Save writes the ledger, creating parent directories as needed.
func (s *Store) Save(ledger *HashLedger) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return errorwrapper.WrapError(err, "failed to marshal hash ledger")
	}
	if err := s.fileManager.WriteFile(s.path, data, filemanager.DefaultFileWriteOptions()); err != nil {
		return errorwrapper.WrapError(err, "failed to write hash ledger: "+s.path)
	}

	s.logger.Info().
		Str("path", s.path).
		Str("version", ledger.Version).
		Int("total_files", ledger.TotalFiles).
		Int("last_updated_count", ledger.LastUpdatedCount).
		Msg("Persisted hash ledger")
	return nil
}

// Path returns the location the store reads and writes
func (s *Store) Path() string {
	return s.path
}
