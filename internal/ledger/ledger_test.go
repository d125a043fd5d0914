package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "file_hashes.json")
	store := NewStore(path, zerolog.Nop())

	saved := BuildLedger("1.2.0", map[string]string{
		"core/main.py":  "abc123",
		"static/app.js": "def456",
	}, []string{"core/main.py"})
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", loaded.Version)
	assert.Equal(t, 2, loaded.TotalFiles)
	assert.Equal(t, "abc123", loaded.Files["core/main.py"])
	assert.Equal(t, []string{"core/main.py"}, loaded.LastUpdatedFiles)
	assert.Equal(t, 1, loaded.LastUpdatedCount)

	_, parseErr := time.Parse("2006-01-02 15:04:05", loaded.UpdatedAt)
	assert.NoError(t, parseErr)
}

func TestStore_LoadMissingReturnsNoBaseline(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "file_hashes.json"), zerolog.Nop())
	_, err := store.Load()
	assert.ErrorIs(t, err, errorwrapper.ErrNoBaseline)
}

func TestStore_LoadCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file_hashes.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken json"), 0644))

	store := NewStore(path, zerolog.Nop())
	_, err := store.Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errorwrapper.ErrNoBaseline)
}

func TestDetect_ClassifiesDrift(t *testing.T) {
	root := t.TempDir()
	writeFile := func(rel, content string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	writeFile("core/main.py", "print('v1')")
	writeFile("static/app.js", "console.log('v1')")

	scanner := hasher.NewFileScanner([]string{"*.py", "*.js"}, nil, zerolog.Nop())
	baselineDigests, err := scanner.Scan(root)
	require.NoError(t, err)

	store := NewStore(filepath.Join(root, "data", "file_hashes.json"), zerolog.Nop())
	require.NoError(t, store.Save(BuildLedger("1.0.0", baselineDigests, nil)))

	// Mutate the tree: change one file, add one, remove one.
	writeFile("core/main.py", "print('hacked')")
	writeFile("core/extra.py", "pass")
	require.NoError(t, os.Remove(filepath.Join(root, "static", "app.js")))

	detector := NewDetector(store, scanner, zerolog.Nop())
	report, err := detector.Detect(root)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", report.BaselineVersion)
	assert.Equal(t, []string{"core/main.py"}, report.Changed)
	assert.Equal(t, []string{"core/extra.py"}, report.Added)
	assert.Equal(t, []string{"static/app.js"}, report.Removed)
	assert.Zero(t, report.Unchanged)
	assert.False(t, report.Clean())
}

func TestDetect_CleanTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print('v1')"), 0644))

	scanner := hasher.NewFileScanner([]string{"*.py"}, nil, zerolog.Nop())
	digests, err := scanner.Scan(root)
	require.NoError(t, err)

	store := NewStore(filepath.Join(root, "data", "file_hashes.json"), zerolog.Nop())
	require.NoError(t, store.Save(BuildLedger("1.0.0", digests, nil)))

	report, err := NewDetector(store, scanner, zerolog.Nop()).Detect(root)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Unchanged)
}

func TestDetect_IgnoresBackupTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log('v1')"), 0644))

	cfg := config.NewDefaultGlobalConfig()
	scanner := hasher.NewFileScanner([]string{"*.js"}, cfg.ScanExclusions(), zerolog.Nop())

	digests, err := scanner.Scan(root)
	require.NoError(t, err)
	store := NewStore(filepath.Join(root, "data", "file_hashes.json"), zerolog.Nop())
	require.NoError(t, store.Save(BuildLedger("1.0.0", digests, []string{"app.js"})))

	// An earlier run preserved a copy under the backup tree. It must not
	// show up as an added file.
	backupCopy := filepath.Join(root, "update_backup", "20250101_000000", "app.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(backupCopy), 0755))
	require.NoError(t, os.WriteFile(backupCopy, []byte("console.log('v0')"), 0644))

	report, err := NewDetector(store, scanner, zerolog.Nop()).Detect(root)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.True(t, report.Clean())
}

func TestDetect_NoBaseline(t *testing.T) {
	root := t.TempDir()
	scanner := hasher.NewFileScanner([]string{"*.py"}, nil, zerolog.Nop())
	store := NewStore(filepath.Join(root, "data", "file_hashes.json"), zerolog.Nop())

	_, err := NewDetector(store, scanner, zerolog.Nop()).Detect(root)
	assert.ErrorIs(t, err, errorwrapper.ErrNoBaseline)
}
