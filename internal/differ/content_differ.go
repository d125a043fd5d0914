package differ

import (
	"bytes"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// textExtensions lists file types worth line-diffing. Everything else is
// treated as opaque content.
var textExtensions = map[string]bool{
	".py":   true,
	".js":   true,
	".css":  true,
	".html": true,
	".json": true,
	".yml":  true,
	".yaml": true,
	".txt":  true,
	".md":   true,
}

// DiffConfig controls content diffing behavior
type DiffConfig struct {
	EnableSemanticCleanup bool
	MaxDiffFileSizeMB     int
}

// DefaultDiffConfig returns the default diff configuration
func DefaultDiffConfig() DiffConfig {
	return DiffConfig{
		EnableSemanticCleanup: false,
		MaxDiffFileSizeMB:     5,
	}
}

// ChangeStats summarizes how a file changed between two versions
type ChangeStats struct {
	LinesAdded   int
	LinesRemoved int
	Identical    bool
	Skipped      bool
}

// ContentDiffer computes line-level change statistics between the previous
// and the freshly installed content of a file.
type ContentDiffer struct {
	dmp    *diffmatchpatch.DiffMatchPatch
	config DiffConfig
	logger zerolog.Logger
}

// NewContentDiffer creates a new content differ
func NewContentDiffer(config DiffConfig, logger zerolog.Logger) *ContentDiffer {
	if config.MaxDiffFileSizeMB <= 0 {
		config.MaxDiffFileSizeMB = DefaultDiffConfig().MaxDiffFileSizeMB
	}
	return &ContentDiffer{
		dmp:    diffmatchpatch.New(),
		config: config,
		logger: logger.With().Str("component", "ContentDiffer").Logger(),
	}
}

// ComputeStats diffs two content versions of relPath line by line.
// Non-text files and files over the size limit are not diffed; their
// stats carry Skipped=true with only the identity check filled in.
func (cd *ContentDiffer) ComputeStats(previous, current []byte, relPath string) ChangeStats {
	identical := bytes.Equal(previous, current)
	if identical {
		return ChangeStats{Identical: true}
	}

	if !textExtensions[strings.ToLower(path.Ext(relPath))] {
		return ChangeStats{Skipped: true}
	}

	maxBytes := cd.config.MaxDiffFileSizeMB * 1024 * 1024
	if len(previous) > maxBytes || len(current) > maxBytes {
		cd.logger.Debug().
			Str("path", relPath).
			Int("previous_bytes", len(previous)).
			Int("current_bytes", len(current)).
			Msg("Content too large for line diff")
		return ChangeStats{Skipped: true}
	}

	chars1, chars2, lineArray := cd.dmp.DiffLinesToChars(string(previous), string(current))
	diffs := cd.dmp.DiffMain(chars1, chars2, false)
	if cd.config.EnableSemanticCleanup {
		diffs = cd.dmp.DiffCleanupSemantic(diffs)
	}
	diffs = cd.dmp.DiffCharsToLines(diffs, lineArray)

	stats := ChangeStats{}
	for _, diff := range diffs {
		lines := countLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			stats.LinesAdded += lines
		case diffmatchpatch.DiffDelete:
			stats.LinesRemoved += lines
		}
	}
	return stats
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
