package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, DefaultServerNamespace, cfg.ServerConfig.Namespace)
	assert.Equal(t, DefaultStorageLedgerPath, cfg.StorageConfig.LedgerPath)
	assert.Equal(t, DefaultBackupDir, cfg.BackupConfig.BackupDir)
	assert.Equal(t, DefaultSchedulerCycleMinutes, cfg.SchedulerConfig.CycleMinutes)
	assert.Contains(t, cfg.UpdateConfig.ExcludedPaths, "logs/")
	assert.Contains(t, cfg.UpdateConfig.NonCriticalFiles, "version.txt")
	assert.Contains(t, cfg.RetryConfig.RetryStatusCodes, 429)
}

func TestScanExclusions_IncludesBackupDir(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	exclusions := cfg.ScanExclusions()
	assert.Contains(t, exclusions, "logs/")
	assert.Contains(t, exclusions, DefaultBackupDir+"/")

	cfg.BackupConfig.BackupDir = "var/backups"
	assert.Contains(t, cfg.ScanExclusions(), "var/backups/")
	// The configured exclusion list itself stays untouched.
	assert.NotContains(t, cfg.UpdateConfig.ExcludedPaths, "var/backups/")
}

func TestLoadGlobalConfig_NoConfigFile(t *testing.T) {
	logger := zerolog.Nop()

	cfg, err := LoadGlobalConfig("", logger)

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, DefaultServerCheckTimeoutSecs, cfg.ServerConfig.CheckTimeoutSecs)
}

func TestLoadGlobalConfig_NonExistentFile(t *testing.T) {
	logger := zerolog.Nop()

	cfg, err := LoadGlobalConfig("/nonexistent/config.json", logger)

	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadGlobalConfig_JSONFile(t *testing.T) {
	logger := zerolog.Nop()
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.json")

	configData := `{
		"server_config": {
			"base_url": "https://updates.example.com",
			"namespace": "marketbot"
		},
		"log_config": {
			"log_level": "debug"
		}
	}`

	err := os.WriteFile(configFile, []byte(configData), 0644)
	require.NoError(t, err)

	cfg, err := LoadGlobalConfig(configFile, logger)

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "https://updates.example.com", cfg.ServerConfig.BaseURL)
	assert.Equal(t, "marketbot", cfg.ServerConfig.Namespace)
	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	// Untouched sections keep defaults
	assert.Equal(t, DefaultStorageLedgerPath, cfg.StorageConfig.LedgerPath)
}

func TestLoadGlobalConfig_YAMLFile(t *testing.T) {
	logger := zerolog.Nop()
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")

	configData := `
server_config:
  base_url: https://updates.example.com
update_config:
  current_version: 2.3.1
  excluded_paths:
    - data/
    - secrets/
scheduler_config:
  cycle_minutes: 15
  sqlite_db_path: data/update_runs.db
notification_config:
  notify_on_success: true
  webhook_url: https://example.com/webhook
`

	err := os.WriteFile(configFile, []byte(configData), 0644)
	require.NoError(t, err)

	cfg, err := LoadGlobalConfig(configFile, logger)

	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "2.3.1", cfg.UpdateConfig.CurrentVersion)
	assert.Equal(t, []string{"data/", "secrets/"}, cfg.UpdateConfig.ExcludedPaths)
	assert.Equal(t, 15, cfg.SchedulerConfig.CycleMinutes)
	assert.True(t, cfg.NotificationConfig.NotifyOnSuccess)
	assert.Equal(t, "https://example.com/webhook", cfg.NotificationConfig.WebhookURL)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*GlobalConfig)
		expectError bool
	}{
		{
			name:        "defaults are valid",
			mutate:      func(cfg *GlobalConfig) {},
			expectError: false,
		},
		{
			name: "invalid log level",
			mutate: func(cfg *GlobalConfig) {
				cfg.LogConfig.LogLevel = "verbose"
			},
			expectError: true,
		},
		{
			name: "invalid log format",
			mutate: func(cfg *GlobalConfig) {
				cfg.LogConfig.LogFormat = "xml"
			},
			expectError: true,
		},
		{
			name: "invalid server url",
			mutate: func(cfg *GlobalConfig) {
				cfg.ServerConfig.BaseURL = "not a url"
			},
			expectError: true,
		},
		{
			name: "cycle minutes below minimum",
			mutate: func(cfg *GlobalConfig) {
				cfg.SchedulerConfig.CycleMinutes = 0
			},
			expectError: true,
		},
		{
			name: "missing ledger path",
			mutate: func(cfg *GlobalConfig) {
				cfg.StorageConfig.LedgerPath = ""
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultGlobalConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveCurrentVersion(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("configured version wins", func(t *testing.T) {
		cfg := NewDefaultUpdateConfig()
		cfg.CurrentVersion = "3.1.4"

		assert.Equal(t, "3.1.4", ResolveCurrentVersion(cfg, tempDir))
	})

	t.Run("version file first line", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "static"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "static", "version.txt"), []byte("1.0.8\nbuild info\n"), 0644))

		cfg := NewDefaultUpdateConfig()

		assert.Equal(t, "1.0.8", ResolveCurrentVersion(cfg, tempDir))
	})

	t.Run("fallback when file missing", func(t *testing.T) {
		cfg := NewDefaultUpdateConfig()
		cfg.VersionFile = "nope/version.txt"

		assert.Equal(t, DefaultFallbackVersion, ResolveCurrentVersion(cfg, tempDir))
	})
}
