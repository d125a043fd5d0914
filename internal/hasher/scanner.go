package hasher

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
)

// FileScanner enumerates update-eligible files under an application root
// and produces their current digests.
type FileScanner struct {
	hasher     *FileHasher
	patterns   []string
	exclusions []string
	logger     zerolog.Logger
}

// NewFileScanner creates a scanner for the given filename patterns and
// excluded path fragments.
func NewFileScanner(patterns []string, exclusions []string, logger zerolog.Logger) *FileScanner {
	return &FileScanner{
		hasher:     NewFileHasher(logger),
		patterns:   patterns,
		exclusions: exclusions,
		logger:     logger.With().Str("component", "FileScanner").Logger(),
	}
}

// IsExcluded reports whether relPath falls under the exclusion rules.
// Matching is case-insensitive on the forward-slash form of the path, and
// a fragment excludes both paths it prefixes and paths that contain it.
func (s *FileScanner) IsExcluded(relPath string) bool {
	normalized := strings.ToLower(filepath.ToSlash(relPath))
	for _, fragment := range s.exclusions {
		needle := strings.ToLower(fragment)
		if needle == "" {
			continue
		}
		if strings.HasPrefix(normalized, needle) || strings.Contains(normalized, needle) {
			return true
		}
	}
	return false
}

func (s *FileScanner) matchesPattern(name string) bool {
	for _, pattern := range s.patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Scan walks root and returns a map of relative forward-slash paths to
// digests for every file that matches a pattern and is not excluded.
// Files that cannot be hashed are logged and skipped rather than failing
// the whole scan.
func (s *FileScanner) Scan(root string) (map[string]string, error) {
	digests := make(map[string]string)

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !s.matchesPattern(entry.Name()) {
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)

		if s.IsExcluded(relPath) {
			return nil
		}

		digest, hashErr := s.hasher.HashFile(path)
		if hashErr != nil {
			s.logger.Warn().Err(hashErr).Str("path", relPath).Msg("Skipping unreadable file during scan")
			return nil
		}
		digests[relPath] = digest
		return nil
	})
	if walkErr != nil {
		return nil, errorwrapper.WrapError(walkErr, "failed to scan directory: "+root)
	}

	s.logger.Debug().Int("file_count", len(digests)).Str("root", root).Msg("Completed file scan")
	return digests, nil
}
