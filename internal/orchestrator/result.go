package orchestrator

// UpdateResult summarizes one finished update pass.
type UpdateResult struct {
	Success         bool         `json:"success"`
	Status          UpdateStatus `json:"status"`
	Message         string       `json:"message"`
	ManifestVersion string       `json:"manifest_version,omitempty"`
	UpdatedFiles    []string     `json:"updated_files,omitempty"`
	RequiresRestart bool         `json:"requires_restart"`
}
