package manifest

import (
	"path"
	"strings"
)

// TimestampLayout is the human-readable timestamp format used in manifests.
const TimestampLayout = "2006-01-02 15:04:05"

// restartExtensions lists file types that only take effect after a process
// restart. Everything else is treated as hot-swappable.
var restartExtensions = map[string]bool{
	".py":  true,
	".pyd": true,
	".so":  true,
	".dll": true,
	".exe": true,
}

// hotSwapExtensions lists file types the running application picks up
// without a restart. The generator uses this as the authoritative set:
// anything outside it is published as requiring a restart.
var hotSwapExtensions = map[string]bool{
	".js":   true,
	".css":  true,
	".html": true,
	".json": true,
	".yml":  true,
	".yaml": true,
}

// FileUpdate describes one file entry in an update manifest.
type FileUpdate struct {
	Path            string `json:"path"`
	Digest          string `json:"md5"`
	Size            int64  `json:"size"`
	DownloadURL     string `json:"download_url"`
	Version         string `json:"version,omitempty"`
	RestartOverride *bool  `json:"requires_restart,omitempty"`
	Description     string `json:"description,omitempty"`
}

// RequiresRestart reports whether applying this file forces a restart.
// An explicit manifest value wins; otherwise the decision falls back to
// the file extension.
func (fu *FileUpdate) RequiresRestart() bool {
	if fu.RestartOverride != nil {
		return *fu.RestartOverride
	}
	return restartExtensions[strings.ToLower(path.Ext(fu.Path))]
}

// UpdateManifest is the payload describing one published release.
type UpdateManifest struct {
	Version     string       `json:"version"`
	ReleaseDate string       `json:"release_date"`
	Description string       `json:"description"`
	MinVersion  string       `json:"min_version,omitempty"`
	Changelog   []string     `json:"changelog,omitempty"`
	Files       []FileUpdate `json:"files"`
}

// APIResponse is the envelope the update server wraps manifests in.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    *UpdateManifest `json:"data,omitempty"`
}
