package planner

import (
	"path/filepath"

	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
)

// DiffPlanner compares a release manifest against the local file state and
// decides which files actually need to be applied.
type DiffPlanner struct {
	scanner *hasher.FileScanner
	logger  zerolog.Logger
}

// NewDiffPlanner creates a planner honoring the given exclusion fragments
func NewDiffPlanner(exclusions []string, logger zerolog.Logger) *DiffPlanner {
	return &DiffPlanner{
		scanner: hasher.NewFileScanner(nil, exclusions, logger),
		logger:  logger.With().Str("component", "DiffPlanner").Logger(),
	}
}

// Plan returns the manifest entries that must be applied, in manifest
// order. An entry is planned when its digest differs from the local one,
// when the local file is missing, or when the manifest carries no digest
// at all. Excluded paths are never planned, digest or not. Duplicate
// paths are kept as-is: applying them in order leaves the last entry's
// content on disk.
func (dp *DiffPlanner) Plan(m *manifest.UpdateManifest, localDigests map[string]string) []manifest.FileUpdate {
	planned := make([]manifest.FileUpdate, 0, len(m.Files))
	var skippedCurrent, skippedExcluded int

	for _, fu := range m.Files {
		if fu.Path == "" {
			dp.logger.Warn().Msg("Ignoring manifest entry without a path")
			continue
		}

		relPath := filepath.ToSlash(fu.Path)
		if dp.scanner.IsExcluded(relPath) {
			skippedExcluded++
			dp.logger.Debug().Str("path", relPath).Msg("Skipping excluded path from manifest")
			continue
		}

		if fu.Digest == "" {
			// Publisher opted out of digests for this entry: always refresh.
			planned = append(planned, fu)
			continue
		}

		if localDigests[relPath] != fu.Digest {
			planned = append(planned, fu)
			continue
		}
		skippedCurrent++
	}

	dp.logger.Info().
		Int("planned", len(planned)).
		Int("up_to_date", skippedCurrent).
		Int("excluded", skippedExcluded).
		Str("manifest_version", m.Version).
		Msg("Computed update plan")
	return planned
}

// TotalSize sums the declared sizes of the planned updates. Entries
// without a size contribute nothing.
func TotalSize(updates []manifest.FileUpdate) int64 {
	var total int64
	for _, fu := range updates {
		if fu.Size > 0 {
			total += fu.Size
		}
	}
	return total
}
