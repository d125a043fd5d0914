package installer

import (
	"path/filepath"
	"strings"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/filemanager"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
)

// InstallOutcome describes how an apply finished
type InstallOutcome int

const (
	// OutcomeInstalled means the file was applied and the previous content was preserved
	OutcomeInstalled InstallOutcome = iota
	// OutcomeInstalledWithoutBackup means the file was applied but the previous content could not be preserved
	OutcomeInstalledWithoutBackup
)

// String returns the human-readable outcome name
func (o InstallOutcome) String() string {
	switch o {
	case OutcomeInstalled:
		return "installed"
	case OutcomeInstalledWithoutBackup:
		return "installed_without_backup"
	default:
		return "unknown"
	}
}

// Installer writes verified update content into the application tree.
type Installer struct {
	appRoot       string
	backupManager *BackupManager
	fileManager   *filemanager.FileManager
	logger        zerolog.Logger
}

// NewInstaller creates an installer rooted at appRoot
func NewInstaller(appRoot string, backupManager *BackupManager, logger zerolog.Logger) *Installer {
	return &Installer{
		appRoot:       appRoot,
		backupManager: backupManager,
		fileManager:   filemanager.NewFileManager(logger),
		logger:        logger.With().Str("component", "Installer").Logger(),
	}
}

// Apply installs the downloaded bytes for one manifest entry. The previous
// content is backed up first; a backup failure is logged and reported
// through the outcome but never blocks the install. A write failure is
// returned as an error so the caller can abort the rest of the batch.
func (inst *Installer) Apply(fu manifest.FileUpdate, data []byte) (InstallOutcome, error) {
	relPath := filepath.FromSlash(fu.Path)
	if err := validateRelPath(fu.Path); err != nil {
		return OutcomeInstalled, err
	}
	targetPath := filepath.Join(inst.appRoot, relPath)

	outcome := OutcomeInstalled
	if _, err := inst.backupManager.BackupFile(inst.appRoot, fu.Path); err != nil {
		inst.logger.Warn().Err(err).Str("path", fu.Path).Msg("Backup failed, applying update without one")
		outcome = OutcomeInstalledWithoutBackup
	}

	if err := inst.fileManager.WriteFile(targetPath, data, filemanager.DefaultFileWriteOptions()); err != nil {
		return outcome, errorwrapper.WrapError(err, "failed to install "+fu.Path)
	}

	inst.logger.Info().
		Str("path", fu.Path).
		Int("bytes", len(data)).
		Bool("requires_restart", fu.RequiresRestart()).
		Str("outcome", outcome.String()).
		Msg("Applied file update")
	return outcome, nil
}

// validateRelPath rejects manifest paths that would land outside the
// application root.
func validateRelPath(relPath string) error {
	if relPath == "" {
		return errorwrapper.NewValidationError("path", relPath, "manifest entry has no path")
	}
	if filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") {
		return errorwrapper.NewValidationError("path", relPath, "manifest path must be relative")
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(relPath)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return errorwrapper.NewValidationError("path", relPath, "manifest path escapes the application root")
	}
	return nil
}
