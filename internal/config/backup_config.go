package config

// BackupConfig defines configuration for pre-install backups
type BackupConfig struct {
	BackupDir     string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty" validate:"required"`
	RetentionDays int    `json:"retention_days,omitempty" yaml:"retention_days,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultBackupConfig creates default backup configuration
func NewDefaultBackupConfig() BackupConfig {
	return BackupConfig{
		BackupDir:     DefaultBackupDir,
		RetentionDays: DefaultBackupRetentionDays,
	}
}
