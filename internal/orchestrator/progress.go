package orchestrator

// UpdateStatus is the lifecycle state of an update pass
type UpdateStatus string

const (
	// StatusIdle means no update activity is in progress
	StatusIdle UpdateStatus = "idle"
	// StatusChecking means the orchestrator is querying the update server
	StatusChecking UpdateStatus = "checking"
	// StatusDownloading means file content is being fetched
	StatusDownloading UpdateStatus = "downloading"
	// StatusInstalling means downloaded content is being written into place
	StatusInstalling UpdateStatus = "installing"
	// StatusCompleted means the pass finished and no restart is needed
	StatusCompleted UpdateStatus = "completed"
	// StatusFailed means the pass aborted; files applied before the failure stay
	StatusFailed UpdateStatus = "failed"
	// StatusRestartRequired means the pass finished and at least one applied file needs a restart
	StatusRestartRequired UpdateStatus = "restart_required"
)

// String returns the wire representation of the status
func (s UpdateStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status ends an update pass
func (s UpdateStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRestartRequired:
		return true
	default:
		return false
	}
}

// UpdateProgress is a point-in-time snapshot of an update pass. Observers
// always receive it by value; mutating a received snapshot has no effect
// on the orchestrator.
type UpdateProgress struct {
	Status          UpdateStatus `json:"status"`
	CurrentFile     string       `json:"current_file,omitempty"`
	CurrentIndex    int          `json:"current_index"`
	TotalFiles      int          `json:"total_files"`
	DownloadedBytes int64        `json:"downloaded_bytes"`
	TotalBytes      int64        `json:"total_bytes"`
	Message         string       `json:"message,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// ProgressObserver receives progress snapshots during an update pass.
// Observers run synchronously on the update flow; a panicking observer is
// recovered and logged without affecting the pass or other observers.
type ProgressObserver interface {
	OnProgress(progress UpdateProgress)
}

// ProgressObserverFunc adapts a plain function to the ProgressObserver interface
type ProgressObserverFunc func(UpdateProgress)

// OnProgress calls the wrapped function
func (f ProgressObserverFunc) OnProgress(progress UpdateProgress) {
	f(progress)
}
