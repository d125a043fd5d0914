package manifest

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/filemanager"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/rs/zerolog"
)

// GeneratorConfig describes the release a generated manifest announces.
type GeneratorConfig struct {
	Version         string
	Description     string
	MinVersion      string
	Changelog       []string
	BaseDownloadURL string
	FilePatterns    []string
	ExcludedPaths   []string
}

// Generator produces update manifests from a release directory. It is the
// publishing-side counterpart of the update client.
type Generator struct {
	cfg         GeneratorConfig
	scanner     *hasher.FileScanner
	fileManager *filemanager.FileManager
	logger      zerolog.Logger
}

// NewGenerator creates a manifest generator
func NewGenerator(cfg GeneratorConfig, logger zerolog.Logger) *Generator {
	return &Generator{
		cfg:         cfg,
		scanner:     hasher.NewFileScanner(cfg.FilePatterns, cfg.ExcludedPaths, logger),
		fileManager: filemanager.NewFileManager(logger),
		logger:      logger.With().Str("component", "ManifestGenerator").Logger(),
	}
}

// Generate scans root and builds a manifest entry for every eligible file.
// Entries are sorted by path so repeated runs over the same tree produce
// identical output.
func (g *Generator) Generate(root string) (*UpdateManifest, error) {
	digests, err := g.scanner.Scan(root)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to scan release directory")
	}

	paths := make([]string, 0, len(digests))
	for relPath := range digests {
		paths = append(paths, relPath)
	}
	sort.Strings(paths)

	baseURL := strings.TrimSuffix(g.cfg.BaseDownloadURL, "/")
	files := make([]FileUpdate, 0, len(paths))
	for _, relPath := range paths {
		info, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(relPath)))
		if statErr != nil {
			g.logger.Warn().Err(statErr).Str("path", relPath).Msg("Skipping file that vanished during generation")
			continue
		}

		restart := !hotSwapExtensions[strings.ToLower(path.Ext(relPath))]
		files = append(files, FileUpdate{
			Path:            relPath,
			Digest:          digests[relPath],
			Size:            info.Size(),
			DownloadURL:     baseURL + "/" + relPath,
			Version:         g.cfg.Version,
			RestartOverride: &restart,
		})
	}

	manifest := &UpdateManifest{
		Version:     g.cfg.Version,
		ReleaseDate: time.Now().Format(TimestampLayout),
		Description: g.cfg.Description,
		MinVersion:  g.cfg.MinVersion,
		Changelog:   g.cfg.Changelog,
		Files:       files,
	}

	g.logger.Info().
		Str("version", manifest.Version).
		Int("file_count", len(files)).
		Msg("Generated update manifest")
	return manifest, nil
}

// WriteFile marshals the manifest as indented JSON and writes it to path.
func (g *Generator) WriteFile(m *UpdateManifest, outputPath string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errorwrapper.WrapError(err, "failed to marshal update manifest")
	}
	return g.fileManager.WriteFile(outputPath, data, filemanager.DefaultFileWriteOptions())
}
