package config

// UpdateConfig defines which local files participate in updates
type UpdateConfig struct {
	// CurrentVersion overrides version file lookup when set
	CurrentVersion string `json:"current_version,omitempty" yaml:"current_version,omitempty"`
	// VersionFile is read for the installed version when CurrentVersion is empty
	VersionFile string `json:"version_file,omitempty" yaml:"version_file,omitempty"`
	// FilePatterns are glob-like suffix patterns matched during scans
	FilePatterns []string `json:"file_patterns,omitempty" yaml:"file_patterns,omitempty" validate:"omitempty,dive,required"`
	// ExcludedPaths are normalized fragments; a path matching any of them
	// by prefix or substring is never planned for update
	ExcludedPaths []string `json:"excluded_paths,omitempty" yaml:"excluded_paths,omitempty"`
	// NonCriticalFiles tolerate a digest mismatch with a warning
	NonCriticalFiles []string `json:"non_critical_files,omitempty" yaml:"non_critical_files,omitempty"`
	// MinFreeDiskMB is the headroom required beyond the planned download
	// size before the download phase starts; 0 disables the preflight
	MinFreeDiskMB int `json:"min_free_disk_mb,omitempty" yaml:"min_free_disk_mb,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultUpdateConfig creates default update configuration
func NewDefaultUpdateConfig() UpdateConfig {
	return UpdateConfig{
		CurrentVersion:   "",
		VersionFile:      DefaultVersionFile,
		FilePatterns:     DefaultFilePatterns(),
		ExcludedPaths:    DefaultExcludedPaths(),
		NonCriticalFiles: DefaultNonCriticalFiles(),
		MinFreeDiskMB:    DefaultMinFreeDiskMB,
	}
}
