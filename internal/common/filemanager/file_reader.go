package filemanager

import (
	"fmt"
	"os"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// FileReader handles file reading operations
type FileReader struct {
	logger zerolog.Logger
}

// NewFileReader creates a new FileReader instance
func NewFileReader(logger zerolog.Logger) *FileReader {
	return &FileReader{
		logger: logger.With().Str("component", "FileReader").Logger(),
	}
}

// ReadFile reads a file with the given options
func (fr *FileReader) ReadFile(path string, opts FileReadOptions) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, fmt.Sprintf("failed to stat file: %s", path))
	}
	if stat.IsDir() {
		return nil, errorwrapper.NewValidationError("path", path, "is a directory, not a file")
	}
	if opts.MaxSize > 0 && stat.Size() > opts.MaxSize {
		return nil, errorwrapper.NewValidationError("file_size", stat.Size(), fmt.Sprintf("exceeds maximum size of %d bytes", opts.MaxSize))
	}

	if opts.Context != nil {
		if err := opts.Context.Err(); err != nil {
			return nil, errorwrapper.WrapError(err, "file read cancelled")
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errorwrapper.WrapError(err, fmt.Sprintf("failed to read file: %s", path))
	}

	return data, nil
}
