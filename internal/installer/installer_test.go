package installer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_OverwritesAndBacksUp(t *testing.T) {
	appRoot := t.TempDir()
	targetPath := filepath.Join(appRoot, "core", "main.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(targetPath), 0755))
	require.NoError(t, os.WriteFile(targetPath, []byte("print('v1')"), 0644))

	backupRoot := filepath.Join(appRoot, "update_backup")
	inst := NewInstaller(appRoot, NewBackupManager(backupRoot, zerolog.Nop()), zerolog.Nop())

	outcome, err := inst.Apply(manifest.FileUpdate{Path: "core/main.py"}, []byte("print('v2')"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)

	content, err := os.ReadFile(targetPath)
	require.NoError(t, err)
	assert.Equal(t, "print('v2')", string(content))

	runDirs, err := os.ReadDir(backupRoot)
	require.NoError(t, err)
	require.Len(t, runDirs, 1)
	backedUp, err := os.ReadFile(filepath.Join(backupRoot, runDirs[0].Name(), "core", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('v1')", string(backedUp))
}

func TestApply_NewFileCreatesParents(t *testing.T) {
	appRoot := t.TempDir()
	backupRoot := filepath.Join(appRoot, "update_backup")
	inst := NewInstaller(appRoot, NewBackupManager(backupRoot, zerolog.Nop()), zerolog.Nop())

	outcome, err := inst.Apply(manifest.FileUpdate{Path: "plugins/new/widget.js"}, []byte("export {}"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInstalled, outcome)

	content, err := os.ReadFile(filepath.Join(appRoot, "plugins", "new", "widget.js"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(content))

	// Nothing existed before, so no backup run directory should appear.
	_, statErr := os.Stat(backupRoot)
	assert.True(t, os.IsNotExist(statErr))
}

func TestApply_SharedRunDirectoryAcrossFiles(t *testing.T) {
	appRoot := t.TempDir()
	for _, rel := range []string{"a.py", "b.py"} {
		require.NoError(t, os.WriteFile(filepath.Join(appRoot, rel), []byte("old"), 0644))
	}

	backupRoot := filepath.Join(appRoot, "update_backup")
	inst := NewInstaller(appRoot, NewBackupManager(backupRoot, zerolog.Nop()), zerolog.Nop())

	_, err := inst.Apply(manifest.FileUpdate{Path: "a.py"}, []byte("new"))
	require.NoError(t, err)
	_, err = inst.Apply(manifest.FileUpdate{Path: "b.py"}, []byte("new"))
	require.NoError(t, err)

	runDirs, err := os.ReadDir(backupRoot)
	require.NoError(t, err)
	assert.Len(t, runDirs, 1)
}

func TestApply_RejectsEscapingPath(t *testing.T) {
	appRoot := t.TempDir()
	inst := NewInstaller(appRoot, NewBackupManager(filepath.Join(appRoot, "update_backup"), zerolog.Nop()), zerolog.Nop())

	_, err := inst.Apply(manifest.FileUpdate{Path: "../outside.py"}, []byte("nope"))
	assert.Error(t, err)

	_, err = inst.Apply(manifest.FileUpdate{Path: "/etc/passwd"}, []byte("nope"))
	assert.Error(t, err)
}

func TestBackupFile_NewSessionGetsOwnDirectory(t *testing.T) {
	appRoot := t.TempDir()
	backupRoot := filepath.Join(appRoot, "update_backup")
	targetPath := filepath.Join(appRoot, "app.js")
	bm := NewBackupManager(backupRoot, zerolog.Nop())

	require.NoError(t, os.WriteFile(targetPath, []byte("v1"), 0644))
	firstBackup, err := bm.BackupFile(appRoot, "app.js")
	require.NoError(t, err)

	// A long-lived manager serving a second run must not reuse the first
	// run's directory, even within the same timestamp second.
	require.NoError(t, os.WriteFile(targetPath, []byte("v2"), 0644))
	bm.StartSession()
	secondBackup, err := bm.BackupFile(appRoot, "app.js")
	require.NoError(t, err)
	assert.NotEqual(t, firstBackup, secondBackup)

	preserved, err := os.ReadFile(firstBackup)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(preserved))
	current, err := os.ReadFile(secondBackup)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(current))

	runDirs, err := os.ReadDir(backupRoot)
	require.NoError(t, err)
	assert.Len(t, runDirs, 2)
}

func TestCleanupOldBackups(t *testing.T) {
	backupRoot := t.TempDir()

	oldDir := filepath.Join(backupRoot, "20200101_000000")
	require.NoError(t, os.MkdirAll(oldDir, 0755))
	oldTime := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(oldDir, oldTime, oldTime))

	freshDir := filepath.Join(backupRoot, time.Now().Format("20060102_150405"))
	require.NoError(t, os.MkdirAll(freshDir, 0755))

	bm := NewBackupManager(backupRoot, zerolog.Nop())
	removed, err := bm.CleanupOldBackups(7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(oldDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshDir)
	assert.NoError(t, err)
}

func TestCleanupOldBackups_MissingRoot(t *testing.T) {
	bm := NewBackupManager(filepath.Join(t.TempDir(), "never-created"), zerolog.Nop())
	removed, err := bm.CleanupOldBackups(7)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
