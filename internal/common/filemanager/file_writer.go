package filemanager

import (
	"fmt"
	"os"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// FileWriter handles file writing operations
type FileWriter struct {
	logger zerolog.Logger
}

// NewFileWriter creates a new FileWriter instance
func NewFileWriter(logger zerolog.Logger) *FileWriter {
	return &FileWriter{
		logger: logger.With().Str("component", "FileWriter").Logger(),
	}
}

// WriteFile writes data to a file with the given options.
// Writes are whole-buffer: the file is either the previous content or the
// new content, never a truncated mix from a partial stream.
func (fw *FileWriter) WriteFile(path string, data []byte, opts FileWriteOptions) error {
	if opts.Context != nil {
		if err := opts.Context.Err(); err != nil {
			return errorwrapper.WrapError(err, "file write cancelled")
		}
	}

	perms := opts.Permissions
	if perms == 0 {
		perms = 0644
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perms)
	if err != nil {
		return errorwrapper.WrapError(err, fmt.Sprintf("failed to open file for writing: %s", path))
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()
	if writeErr != nil {
		return errorwrapper.WrapError(writeErr, fmt.Sprintf("failed to write file: %s", path))
	}
	if closeErr != nil {
		return errorwrapper.WrapError(closeErr, fmt.Sprintf("failed to close file after writing: %s", path))
	}

	fw.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("File written successfully")
	return nil
}
