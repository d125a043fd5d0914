package config

const (
	// Server Defaults
	DefaultServerNamespace          = "updates"
	DefaultServerCheckTimeoutSecs   = 30
	DefaultServerDownloadTimeoutSec = 60

	// Update Defaults
	DefaultVersionFile     = "static/version.txt"
	DefaultFallbackVersion = "1.0.0"
	DefaultMinFreeDiskMB   = 200

	// Backup Defaults
	DefaultBackupDir           = "update_backup"
	DefaultBackupRetentionDays = 7

	// Storage Defaults
	DefaultStorageLedgerPath       = "data/file_hashes.json"
	DefaultStorageAuditPath        = "data/update_audit.parquet"
	DefaultStorageCompressionCodec = "zstd"

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Scheduler Defaults
	DefaultSchedulerCycleMinutes = 60
	DefaultSchedulerSQLiteDBPath = "data/update_runs.db"
)

// DefaultFilePatterns lists the file classes tracked by scans and manifests.
func DefaultFilePatterns() []string {
	return []string{"*.py", "*.js", "*.css", "*.html", "*.yml", "*.yaml", "*.json"}
}

// DefaultExcludedPaths lists path fragments that are never updated: runtime
// data, logs, browser profiles, uploads, compiled-artifact caches,
// version-control metadata, and the user's local configuration file.
func DefaultExcludedPaths() []string {
	return []string{"data/", "logs/", "browser_data/", "uploads/", "__pycache__/", ".git/", "global_config.yml"}
}

// DefaultNonCriticalFiles lists filenames whose digest mismatch is tolerated.
func DefaultNonCriticalFiles() []string {
	return []string{"version.txt", "update_log.txt", "changelog.txt"}
}
