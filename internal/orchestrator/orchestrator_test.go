package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/aleister1102/hotpatch/internal/ledger"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileSpec describes one downloadable file the fake update server offers.
type fileSpec struct {
	path           string
	content        string
	digestOverride string
	noDigest       bool
	missing        bool
}

// newUpdateServer serves a manifest plus per-entry download endpoints.
// Download URLs carry the entry index so duplicate paths can ship
// different content.
func newUpdateServer(t *testing.T, version string, specs []fileSpec) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fh := hasher.NewFileHasher(zerolog.Nop())
	files := make([]manifest.FileUpdate, 0, len(specs))
	for i, spec := range specs {
		digest := spec.digestOverride
		if digest == "" && !spec.noDigest {
			digest = fh.HashBytes([]byte(spec.content))
		}
		files = append(files, manifest.FileUpdate{
			Path:        spec.path,
			Digest:      digest,
			Size:        int64(len(spec.content)),
			DownloadURL: fmt.Sprintf("%s/files/%d/%s", server.URL, i, spec.path),
		})
	}
	m := &manifest.UpdateManifest{
		Version:     version,
		ReleaseDate: "2025-06-01 10:00:00",
		Description: "test release",
		Files:       files,
	}

	mux.HandleFunc("/updates/update_manifest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(manifest.APIResponse{Success: true, Data: m})
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/files/")
		var index int
		var relPath string
		if _, err := fmt.Sscanf(rest, "%d/", &index); err != nil || index >= len(specs) {
			http.NotFound(w, r)
			return
		}
		relPath = rest[strings.Index(rest, "/")+1:]
		spec := specs[index]
		if spec.path != relPath || spec.missing {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(spec.content))
	})

	return server
}

func testConfig(serverURL string) *config.GlobalConfig {
	cfg := config.NewDefaultGlobalConfig()
	cfg.ServerConfig.BaseURL = serverURL
	cfg.ServerConfig.CheckTimeoutSecs = 5
	cfg.ServerConfig.DownloadTimeoutSecs = 5
	cfg.RetryConfig.MaxRetries = 0
	cfg.RetryConfig.BaseDelaySecs = 0
	cfg.UpdateConfig.CurrentVersion = "1.0.0"
	cfg.UpdateConfig.MinFreeDiskMB = 0
	return cfg
}

func newTestOrchestrator(t *testing.T, appRoot string, cfg *config.GlobalConfig, audit *datastore.AuditStore) *UpdateOrchestrator {
	t.Helper()
	uo, err := NewUpdateOrchestratorBuilder(zerolog.Nop()).
		WithConfig(cfg).
		WithAppRoot(appRoot).
		WithAuditStore(audit).
		Build()
	require.NoError(t, err)
	return uo
}

func TestPerformUpdate_FullPass(t *testing.T) {
	appRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(appRoot, "core"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(appRoot, "core", "main.py"), []byte("print('v1')"), 0644))

	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "core/main.py", content: "print('v2')"},
		{path: "static/app.js", content: "console.log('v2')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)

	var statuses []UpdateStatus
	uo.RegisterObserver(ProgressObserverFunc(func(p UpdateProgress) {
		statuses = append(statuses, p.Status)
	}))

	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, StatusRestartRequired, result.Status)
	assert.True(t, result.RequiresRestart)
	assert.Equal(t, "1.1.0", result.ManifestVersion)
	assert.Equal(t, []string{"core/main.py", "static/app.js"}, result.UpdatedFiles)
	assert.Equal(t, "1.1.0", uo.CurrentVersion())

	content, err := os.ReadFile(filepath.Join(appRoot, "core", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('v2')", string(content))
	content, err = os.ReadFile(filepath.Join(appRoot, "static", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('v2')", string(content))

	// The previous content must be preserved in a timestamped run directory.
	backupRoot := filepath.Join(appRoot, "update_backup")
	runDirs, err := os.ReadDir(backupRoot)
	require.NoError(t, err)
	require.Len(t, runDirs, 1)
	backedUp, err := os.ReadFile(filepath.Join(backupRoot, runDirs[0].Name(), "core", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('v1')", string(backedUp))

	// Status sequence: starts checking, downloads and installs, ends terminal.
	require.NotEmpty(t, statuses)
	assert.Equal(t, StatusChecking, statuses[0])
	assert.Contains(t, statuses, StatusDownloading)
	assert.Contains(t, statuses, StatusInstalling)
	assert.Equal(t, StatusRestartRequired, statuses[len(statuses)-1])
}

func TestPerformUpdate_LedgerWrittenAfterSuccess(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "static/app.js", content: "console.log('v2')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)

	store := ledger.NewStore(filepath.Join(appRoot, "data", "file_hashes.json"), zerolog.Nop())
	saved, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, "1.1.0", saved.Version)
	assert.Equal(t, []string{"static/app.js"}, saved.LastUpdatedFiles)
	assert.Equal(t, 1, saved.LastUpdatedCount)

	expectedDigest := hasher.NewFileHasher(zerolog.Nop()).HashBytes([]byte("console.log('v2')"))
	assert.Equal(t, expectedDigest, saved.Files["static/app.js"])
}

func TestPerformUpdate_FailureMidBatch(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "core.py", content: "print('v2')"},
		{path: "b.js", content: "b-v2", missing: true},
		{path: "c.js", content: "c-v2"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.Error(t, err)
	require.False(t, result.Success)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, []string{"core.py"}, result.UpdatedFiles)
	// core.py was applied before the abort, so the failed result still
	// tells the host a restart is due.
	assert.True(t, result.RequiresRestart)

	// core.py was applied and stays; b.js and c.js were never written.
	content, readErr := os.ReadFile(filepath.Join(appRoot, "core.py"))
	require.NoError(t, readErr)
	assert.Equal(t, "print('v2')", string(content))
	_, statErr := os.Stat(filepath.Join(appRoot, "b.js"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(appRoot, "c.js"))
	assert.True(t, os.IsNotExist(statErr))

	// A failed pass never writes the ledger.
	_, statErr = os.Stat(filepath.Join(appRoot, "data", "file_hashes.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPerformUpdate_IntegrityFailureAbortsBatch(t *testing.T) {
	appRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(appRoot, "core.py"), []byte("print('v1')"), 0644))

	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "core.py", content: "tampered", digestOverride: "0123456789abcdef0123456789abcdef"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.UpdatedFiles)

	// The rejected download never touches the local file.
	content, readErr := os.ReadFile(filepath.Join(appRoot, "core.py"))
	require.NoError(t, readErr)
	assert.Equal(t, "print('v1')", string(content))
}

func TestPerformUpdate_NonCriticalMismatchApplied(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "version.txt", content: "1.1.0\n", digestOverride: "ffffffffffffffffffffffffffffffff"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, []string{"version.txt"}, result.UpdatedFiles)
	assert.False(t, result.RequiresRestart)

	content, readErr := os.ReadFile(filepath.Join(appRoot, "version.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "1.1.0\n", string(content))
}

func TestPerformUpdate_NoRestartForHotSwapFiles(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "static/style.css", content: "body{}"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.False(t, result.RequiresRestart)
}

func TestPerformUpdate_UpToDateTreeDownloadsNothing(t *testing.T) {
	appRoot := t.TempDir()
	content := "console.log('same')"
	require.NoError(t, os.WriteFile(filepath.Join(appRoot, "app.js"), []byte(content), 0644))

	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "app.js", content: content},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.UpdatedFiles)
}

func TestPerformUpdate_NoManifestReturnsToIdle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "up to date"}`))
	}))
	defer server.Close()

	uo := newTestOrchestrator(t, t.TempDir(), testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusIdle, result.Status)
	assert.Equal(t, StatusIdle, uo.Progress().Status)
}

func TestPerformUpdate_MalformedManifestFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	uo := newTestOrchestrator(t, t.TempDir(), testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, uo.Progress().Status)
}

func TestPerformUpdate_ExcludedPathNeverApplied(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "global_config.yml", content: "nope: true"},
		{path: "app.js", content: "console.log('v2')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app.js"}, result.UpdatedFiles)
	_, statErr := os.Stat(filepath.Join(appRoot, "global_config.yml"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPerformUpdate_DuplicatePathLastEntryWins(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "app.js", content: "console.log('first')"},
		{path: "app.js", content: "console.log('second')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.UpdatedFiles, 2)

	content, readErr := os.ReadFile(filepath.Join(appRoot, "app.js"))
	require.NoError(t, readErr)
	assert.Equal(t, "console.log('second')", string(content))
}

func TestPerformUpdate_ObserverPanicDoesNotAbort(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "app.js", content: "console.log('v2')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	uo.RegisterObserver(ProgressObserverFunc(func(p UpdateProgress) {
		panic("observer bug")
	}))
	var seen int
	uo.RegisterObserver(ProgressObserverFunc(func(p UpdateProgress) {
		seen++
	}))

	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Positive(t, seen)
}

func TestPerformUpdate_AuditTrailRecordsAppliedFiles(t *testing.T) {
	appRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(appRoot, "main.py"), []byte("print('v1')\n"), 0644))

	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "main.py", content: "print('v2')\n"},
		{path: "app.js", content: "console.log('v2')\n"},
	})

	audit := datastore.NewAuditStore(filepath.Join(appRoot, "data", "update_audit.parquet"), "zstd", zerolog.Nop())
	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), audit)

	result, err := uo.PerformUpdate(context.Background())
	require.NoError(t, err)
	require.True(t, result.Success)

	records, err := audit.Query(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byPath := map[string]datastore.FileUpdateRecord{}
	for _, record := range records {
		byPath[record.Path] = record
	}
	mainRecord := byPath["main.py"]
	assert.Equal(t, "1.1.0", mainRecord.ManifestVersion)
	assert.NotEmpty(t, mainRecord.OldDigest)
	assert.NotEmpty(t, mainRecord.NewDigest)
	assert.NotEqual(t, mainRecord.OldDigest, mainRecord.NewDigest)
	assert.True(t, mainRecord.RequiresRestart)
	assert.Equal(t, "installed", mainRecord.Outcome)
	assert.Positive(t, mainRecord.LinesAdded)

	jsRecord := byPath["app.js"]
	assert.Empty(t, jsRecord.OldDigest)
	assert.False(t, jsRecord.RequiresRestart)
}

func TestCheckForUpdates_ReturnsManifestWithoutApplying(t *testing.T) {
	appRoot := t.TempDir()
	server := newUpdateServer(t, "1.1.0", []fileSpec{
		{path: "app.js", content: "console.log('v2')"},
	})

	uo := newTestOrchestrator(t, appRoot, testConfig(server.URL), nil)
	m, err := uo.CheckForUpdates(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "1.1.0", m.Version)

	_, statErr := os.Stat(filepath.Join(appRoot, "app.js"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, StatusIdle, uo.Progress().Status)
}
