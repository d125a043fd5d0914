package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveCurrentVersion returns the installed version for manifest checks.
// Order: the configured override, then the first line of the version file
// under appRoot, then the fallback version.
func ResolveCurrentVersion(cfg UpdateConfig, appRoot string) string {
	if cfg.CurrentVersion != "" {
		return cfg.CurrentVersion
	}

	versionFile := cfg.VersionFile
	if versionFile == "" {
		versionFile = DefaultVersionFile
	}
	if !filepath.IsAbs(versionFile) {
		versionFile = filepath.Join(appRoot, versionFile)
	}

	data, err := os.ReadFile(versionFile)
	if err != nil {
		return DefaultFallbackVersion
	}

	version := strings.TrimSpace(strings.SplitN(string(data), "\n", 2)[0])
	if version == "" {
		return DefaultFallbackVersion
	}
	return version
}
