package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/common/filemanager"
	"github.com/rs/zerolog"
)

// backupTimestampLayout names per-run backup directories
const backupTimestampLayout = "20060102_150405"

// BackupManager preserves files before they are overwritten. All backups
// of one update run share a single timestamped directory.
type BackupManager struct {
	backupRoot  string
	sessionDir  string
	fileManager *filemanager.FileManager
	logger      zerolog.Logger
}

// NewBackupManager creates a backup manager rooted at backupRoot
func NewBackupManager(backupRoot string, logger zerolog.Logger) *BackupManager {
	return &BackupManager{
		backupRoot:  backupRoot,
		fileManager: filemanager.NewFileManager(logger),
		logger:      logger.With().Str("component", "BackupManager").Logger(),
	}
}

// BackupFile copies the file at relPath under appRoot into the run's
// backup directory, preserving the relative layout. A missing source is
// not an error: there is nothing to preserve for a brand-new file, and
// the returned path is empty.
func (bm *BackupManager) BackupFile(appRoot, relPath string) (string, error) {
	srcPath := filepath.Join(appRoot, filepath.FromSlash(relPath))
	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errorwrapper.WrapError(err, "failed to stat file before backup: "+relPath)
	}

	if bm.sessionDir == "" {
		bm.sessionDir = bm.newSessionDir()
	}

	dstPath := filepath.Join(bm.sessionDir, filepath.FromSlash(relPath))
	if err := bm.fileManager.CopyFile(srcPath, dstPath); err != nil {
		return "", errorwrapper.WrapError(err, "failed to back up "+relPath)
	}

	bm.logger.Debug().Str("path", relPath).Str("backup_path", dstPath).Msg("Backed up file")
	return dstPath, nil
}

// StartSession begins a new backup run. The next BackupFile call creates
// a fresh timestamped directory instead of reusing the previous run's.
func (bm *BackupManager) StartSession() {
	bm.sessionDir = ""
}

// newSessionDir picks a directory name that does not collide with an
// earlier run from the same second.
func (bm *BackupManager) newSessionDir() string {
	stamp := time.Now().Format(backupTimestampLayout)
	dir := filepath.Join(bm.backupRoot, stamp)
	for n := 2; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return dir
		}
		dir = filepath.Join(bm.backupRoot, fmt.Sprintf("%s_%d", stamp, n))
	}
}

// CleanupOldBackups deletes run directories whose modification time is
// older than retentionDays. It returns the number of directories removed.
// A missing backup root means there is nothing to clean.
func (bm *BackupManager) CleanupOldBackups(retentionDays int) (int, error) {
	entries, err := os.ReadDir(bm.backupRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errorwrapper.WrapError(err, "failed to read backup root: "+bm.backupRoot)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			bm.logger.Warn().Err(infoErr).Str("dir", entry.Name()).Msg("Skipping unreadable backup directory")
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dirPath := filepath.Join(bm.backupRoot, entry.Name())
		if rmErr := os.RemoveAll(dirPath); rmErr != nil {
			bm.logger.Warn().Err(rmErr).Str("dir", dirPath).Msg("Failed to remove old backup directory")
			continue
		}
		removed++
		bm.logger.Info().Str("dir", dirPath).Msg("Removed old backup directory")
	}

	return removed, nil
}
