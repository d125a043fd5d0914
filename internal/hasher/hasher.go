package hasher

import (
	"crypto/md5" // #nosec G501 -- digests mirror the manifest format for change detection, not cryptography
	"encoding/hex"
	"io"
	"os"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

const hashChunkSize = 1 << 20 // 1 MiB

// FileHasher computes content digests for update comparisons
type FileHasher struct {
	logger zerolog.Logger
}

// NewFileHasher creates a new FileHasher instance
func NewFileHasher(logger zerolog.Logger) *FileHasher {
	return &FileHasher{
		logger: logger.With().Str("component", "FileHasher").Logger(),
	}
}

// HashFile returns the hex digest of the file at path.
// A missing file yields the empty-string sentinel, not an error: callers
// treat "no local file" as "definitely stale".
func (fh *FileHasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errorwrapper.WrapError(err, "failed to open file for hashing: "+path)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fh.logger.Debug().Err(closeErr).Str("path", path).Msg("Failed to close file after hashing")
		}
	}()

	hash := md5.New() // #nosec G401 -- see package note on digest choice
	buf := make([]byte, hashChunkSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errorwrapper.WrapError(readErr, "failed to read file for hashing: "+path)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// HashBytes returns the hex digest of an in-memory buffer
func (fh *FileHasher) HashBytes(data []byte) string {
	hash := md5.Sum(data) // #nosec G401 -- see package note on digest choice
	return hex.EncodeToString(hash[:])
}
