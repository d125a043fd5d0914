package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/differ"
	"github.com/aleister1102/hotpatch/internal/fetcher"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/aleister1102/hotpatch/internal/installer"
	"github.com/aleister1102/hotpatch/internal/ledger"
	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/aleister1102/hotpatch/internal/planner"
	"github.com/aleister1102/hotpatch/internal/preflight"
	"github.com/rs/zerolog"
)

// UpdateOrchestrator drives one full update pass: check, plan, download,
// verify, install, and ledger persistence. One pass runs at a time; a
// second PerformUpdate blocks until the first finishes.
type UpdateOrchestrator struct {
	appRoot       string
	retentionDays int

	client        *manifest.Client
	fileHasher    *hasher.FileHasher
	scanner       *hasher.FileScanner
	diffPlanner   *planner.DiffPlanner
	updateFetcher *fetcher.Fetcher
	fileInstaller *installer.Installer
	backupManager *installer.BackupManager
	ledgerStore   *ledger.Store
	diskChecker   *preflight.DiskChecker
	auditStore    *datastore.AuditStore
	contentDiffer *differ.ContentDiffer
	logger        zerolog.Logger

	runMu sync.Mutex

	stateMu        sync.Mutex
	currentVersion string
	progress       UpdateProgress

	observerMu sync.RWMutex
	observers  []ProgressObserver
}

// UpdateOrchestratorBuilder constructs orchestrators from configuration
type UpdateOrchestratorBuilder struct {
	cfg        *config.GlobalConfig
	appRoot    string
	auditStore *datastore.AuditStore
	logger     zerolog.Logger
}

// NewUpdateOrchestratorBuilder creates a new UpdateOrchestratorBuilder instance
func NewUpdateOrchestratorBuilder(logger zerolog.Logger) *UpdateOrchestratorBuilder {
	return &UpdateOrchestratorBuilder{
		appRoot: ".",
		logger:  logger,
	}
}

// WithConfig sets the global configuration
func (ob *UpdateOrchestratorBuilder) WithConfig(cfg *config.GlobalConfig) *UpdateOrchestratorBuilder {
	ob.cfg = cfg
	return ob
}

// WithAppRoot sets the application tree the orchestrator updates
func (ob *UpdateOrchestratorBuilder) WithAppRoot(appRoot string) *UpdateOrchestratorBuilder {
	if appRoot != "" {
		ob.appRoot = appRoot
	}
	return ob
}

// WithAuditStore enables the parquet audit trail for applied files
func (ob *UpdateOrchestratorBuilder) WithAuditStore(store *datastore.AuditStore) *UpdateOrchestratorBuilder {
	ob.auditStore = store
	return ob
}

// Build creates the orchestrator and all of its components
func (ob *UpdateOrchestratorBuilder) Build() (*UpdateOrchestrator, error) {
	if ob.cfg == nil {
		return nil, errorwrapper.NewValidationError("config", nil, "global config is required")
	}
	cfg := ob.cfg

	exclusions := cfg.ScanExclusions()

	client, err := manifest.NewClientBuilder(ob.logger).
		WithConfig(cfg.ServerConfig).
		Build()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to build manifest client")
	}

	updateFetcher, err := fetcher.NewFetcherBuilder(ob.logger).
		WithServerConfig(cfg.ServerConfig).
		WithRetryConfig(cfg.RetryConfig).
		WithNonCriticalFiles(cfg.UpdateConfig.NonCriticalFiles).
		Build()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to build update fetcher")
	}

	backupManager := installer.NewBackupManager(resolvePath(ob.appRoot, cfg.BackupConfig.BackupDir), ob.logger)

	var diskChecker *preflight.DiskChecker
	if cfg.UpdateConfig.MinFreeDiskMB > 0 {
		diskChecker = preflight.NewDiskChecker(int64(cfg.UpdateConfig.MinFreeDiskMB), ob.logger)
	}

	return &UpdateOrchestrator{
		appRoot:        ob.appRoot,
		retentionDays:  cfg.BackupConfig.RetentionDays,
		client:         client,
		fileHasher:     hasher.NewFileHasher(ob.logger),
		scanner:        hasher.NewFileScanner(cfg.UpdateConfig.FilePatterns, exclusions, ob.logger),
		diffPlanner:    planner.NewDiffPlanner(exclusions, ob.logger),
		updateFetcher:  updateFetcher,
		fileInstaller:  installer.NewInstaller(ob.appRoot, backupManager, ob.logger),
		backupManager:  backupManager,
		ledgerStore:    ledger.NewStore(resolvePath(ob.appRoot, cfg.StorageConfig.LedgerPath), ob.logger),
		diskChecker:    diskChecker,
		auditStore:     ob.auditStore,
		contentDiffer:  differ.NewContentDiffer(differ.DefaultDiffConfig(), ob.logger),
		currentVersion: config.ResolveCurrentVersion(cfg.UpdateConfig, ob.appRoot),
		progress:       UpdateProgress{Status: StatusIdle},
		logger:         ob.logger.With().Str("component", "UpdateOrchestrator").Logger(),
	}, nil
}

// resolvePath treats p as relative to appRoot unless it is absolute
func resolvePath(appRoot, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(appRoot, filepath.FromSlash(p))
}

// RegisterObserver subscribes an observer to progress snapshots
func (uo *UpdateOrchestrator) RegisterObserver(observer ProgressObserver) {
	if observer == nil {
		return
	}
	uo.observerMu.Lock()
	uo.observers = append(uo.observers, observer)
	uo.observerMu.Unlock()
}

// Progress returns the latest progress snapshot
func (uo *UpdateOrchestrator) Progress() UpdateProgress {
	uo.stateMu.Lock()
	defer uo.stateMu.Unlock()
	return uo.progress
}

// CurrentVersion returns the version used for manifest checks. It moves
// to the manifest version after a successful pass.
func (uo *UpdateOrchestrator) CurrentVersion() string {
	uo.stateMu.Lock()
	defer uo.stateMu.Unlock()
	return uo.currentVersion
}

func (uo *UpdateOrchestrator) setVersion(version string) {
	uo.stateMu.Lock()
	uo.currentVersion = version
	uo.stateMu.Unlock()
}

// CheckForUpdates queries the server without applying anything. The
// status passes through Checking and settles back to Idle.
func (uo *UpdateOrchestrator) CheckForUpdates(ctx context.Context) (*manifest.UpdateManifest, error) {
	uo.runMu.Lock()
	defer uo.runMu.Unlock()

	uo.setProgress(func(p *UpdateProgress) {
		*p = UpdateProgress{Status: StatusChecking, Message: "Checking for updates"}
	})

	m, err := uo.client.CheckForUpdates(ctx, uo.CurrentVersion())
	if err != nil {
		uo.setProgress(func(p *UpdateProgress) {
			p.Status = StatusFailed
			p.Message = "Update check failed"
			p.Error = err.Error()
		})
		return nil, err
	}

	message := "No updates available"
	if m != nil {
		message = fmt.Sprintf("Update %s available", m.Version)
	}
	uo.setProgress(func(p *UpdateProgress) {
		*p = UpdateProgress{Status: StatusIdle, Message: message}
	})
	return m, nil
}

// PerformUpdate runs one full update pass. The returned result is always
// non-nil; the error is non-nil exactly when the pass failed. Files
// applied before a failure stay in place and are reported in the result.
func (uo *UpdateOrchestrator) PerformUpdate(ctx context.Context) (*UpdateResult, error) {
	uo.runMu.Lock()
	defer uo.runMu.Unlock()

	currentVersion := uo.CurrentVersion()
	uo.logger.Info().Str("current_version", currentVersion).Msg("Starting update pass")
	uo.setProgress(func(p *UpdateProgress) {
		*p = UpdateProgress{Status: StatusChecking, Message: "Checking for updates"}
	})

	m, err := uo.client.CheckForUpdates(ctx, currentVersion)
	if err != nil {
		return uo.fail("Update check failed", err, nil, false)
	}
	if m == nil {
		uo.setProgress(func(p *UpdateProgress) {
			*p = UpdateProgress{Status: StatusIdle, Message: "No updates available"}
		})
		return &UpdateResult{Success: true, Status: StatusIdle, Message: "No updates available"}, nil
	}

	if m.MinVersion != "" {
		uo.logger.Info().
			Str("min_version", m.MinVersion).
			Str("current_version", currentVersion).
			Msg("Server advises a minimum version")
	}

	localDigests := uo.hashManifestTargets(m)
	plan := uo.diffPlanner.Plan(m, localDigests)
	if len(plan) == 0 {
		uo.setProgress(func(p *UpdateProgress) {
			*p = UpdateProgress{Status: StatusCompleted, Message: "All files are up to date"}
		})
		return &UpdateResult{
			Success:         true,
			Status:          StatusCompleted,
			Message:         "All files are up to date",
			ManifestVersion: m.Version,
		}, nil
	}

	totalBytes := planner.TotalSize(plan)
	if uo.diskChecker != nil {
		if err := uo.diskChecker.CheckFreeSpace(uo.appRoot, totalBytes); err != nil {
			return uo.fail("Insufficient disk space for update", err, nil, false)
		}
	}

	uo.backupManager.StartSession()

	updated := make([]string, 0, len(plan))
	var auditRecords []datastore.FileUpdateRecord
	requiresRestart := false
	var downloadedBytes int64

	for i, fu := range plan {
		if ctxErr := ctx.Err(); ctxErr != nil {
			uo.flushAudit(auditRecords)
			return uo.fail("Update cancelled", ctxErr, updated, requiresRestart)
		}

		index := i + 1
		uo.setProgress(func(p *UpdateProgress) {
			p.Status = StatusDownloading
			p.CurrentFile = fu.Path
			p.CurrentIndex = index
			p.TotalFiles = len(plan)
			p.DownloadedBytes = downloadedBytes
			p.TotalBytes = totalBytes
			p.Message = "Downloading " + fu.Path
			p.Error = ""
		})

		data, fetchErr := uo.updateFetcher.Fetch(ctx, fu)
		if fetchErr != nil {
			uo.flushAudit(auditRecords)
			return uo.fail("Failed to download "+fu.Path, fetchErr, updated, requiresRestart)
		}
		downloadedBytes += int64(len(data))

		previous := uo.readCurrentContent(fu.Path)

		uo.setProgress(func(p *UpdateProgress) {
			p.Status = StatusInstalling
			p.DownloadedBytes = downloadedBytes
			p.Message = "Installing " + fu.Path
		})

		outcome, applyErr := uo.fileInstaller.Apply(fu, data)
		if applyErr != nil {
			uo.flushAudit(auditRecords)
			return uo.fail("Failed to install "+fu.Path, applyErr, updated, requiresRestart)
		}

		updated = append(updated, fu.Path)
		if fu.RequiresRestart() {
			requiresRestart = true
		}
		if uo.auditStore != nil {
			auditRecords = append(auditRecords, uo.buildAuditRecord(m.Version, fu, previous, data, outcome))
		}
	}

	uo.persistLedger(m, updated)
	uo.flushAudit(auditRecords)
	uo.setVersion(m.Version)

	status := StatusCompleted
	message := fmt.Sprintf("Updated %d files to version %s", len(updated), m.Version)
	if requiresRestart {
		status = StatusRestartRequired
		message += ", restart required"
	}
	uo.setProgress(func(p *UpdateProgress) {
		p.Status = status
		p.CurrentFile = ""
		p.Message = message
	})

	uo.logger.Info().
		Int("files_applied", len(updated)).
		Str("manifest_version", m.Version).
		Bool("requires_restart", requiresRestart).
		Msg("Update pass finished")
	return &UpdateResult{
		Success:         true,
		Status:          status,
		Message:         message,
		ManifestVersion: m.Version,
		UpdatedFiles:    updated,
		RequiresRestart: requiresRestart,
	}, nil
}

// CleanupOldBackups removes backup run directories older than the
// configured retention period.
func (uo *UpdateOrchestrator) CleanupOldBackups() (int, error) {
	return uo.backupManager.CleanupOldBackups(uo.retentionDays)
}

// hashManifestTargets digests only the paths the manifest names. Hash
// failures degrade to the empty sentinel so the file is treated as stale.
func (uo *UpdateOrchestrator) hashManifestTargets(m *manifest.UpdateManifest) map[string]string {
	digests := make(map[string]string, len(m.Files))
	for _, fu := range m.Files {
		relPath := filepath.ToSlash(fu.Path)
		if relPath == "" {
			continue
		}
		if _, seen := digests[relPath]; seen {
			continue
		}
		digest, err := uo.fileHasher.HashFile(filepath.Join(uo.appRoot, filepath.FromSlash(relPath)))
		if err != nil {
			uo.logger.Warn().Err(err).Str("path", relPath).Msg("Could not hash local file, treating as stale")
			digest = ""
		}
		digests[relPath] = digest
	}
	return digests
}

// readCurrentContent loads the file's pre-update bytes for change
// statistics. Only needed when the audit trail is enabled.
func (uo *UpdateOrchestrator) readCurrentContent(relPath string) []byte {
	if uo.auditStore == nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(uo.appRoot, filepath.FromSlash(relPath)))
	if err != nil {
		return nil
	}
	return data
}

func (uo *UpdateOrchestrator) buildAuditRecord(version string, fu manifest.FileUpdate, previous, current []byte, outcome installer.InstallOutcome) datastore.FileUpdateRecord {
	stats := uo.contentDiffer.ComputeStats(previous, current, fu.Path)

	oldDigest := ""
	if previous != nil {
		oldDigest = uo.fileHasher.HashBytes(previous)
	}
	newDigest := fu.Digest
	if newDigest == "" {
		newDigest = uo.fileHasher.HashBytes(current)
	}

	return datastore.FileUpdateRecord{
		Path:            fu.Path,
		ManifestVersion: version,
		OldDigest:       oldDigest,
		NewDigest:       newDigest,
		SizeBytes:       int64(len(current)),
		RequiresRestart: fu.RequiresRestart(),
		Outcome:         outcome.String(),
		LinesAdded:      int32(stats.LinesAdded),
		LinesRemoved:    int32(stats.LinesRemoved),
		AppliedAt:       time.Now(),
	}
}

// persistLedger re-scans the tree and saves the ledger. Failures here are
// logged as warnings: the applied files already represent the new state.
func (uo *UpdateOrchestrator) persistLedger(m *manifest.UpdateManifest, updated []string) {
	digests, err := uo.scanner.Scan(uo.appRoot)
	if err != nil {
		uo.logger.Warn().Err(err).Msg("Skipping ledger update, post-install scan failed")
		return
	}
	if err := uo.ledgerStore.Save(ledger.BuildLedger(m.Version, digests, updated)); err != nil {
		uo.logger.Warn().Err(err).Msg("Failed to persist hash ledger")
	}
}

// flushAudit appends the collected records, detached from the pass
// context so cancellation cannot drop records for files already applied.
func (uo *UpdateOrchestrator) flushAudit(records []datastore.FileUpdateRecord) {
	if uo.auditStore == nil || len(records) == 0 {
		return
	}
	if err := uo.auditStore.Append(context.Background(), records); err != nil {
		uo.logger.Warn().Err(err).Msg("Failed to append update audit records")
	}
}

// fail finalizes an aborted pass. Files applied before the abort stay in
// place, so the result still carries the restart flag they accumulated.
func (uo *UpdateOrchestrator) fail(message string, cause error, updated []string, requiresRestart bool) (*UpdateResult, error) {
	uo.logger.Error().Err(cause).Msg(message)
	uo.setProgress(func(p *UpdateProgress) {
		p.Status = StatusFailed
		p.Message = message
		p.Error = cause.Error()
	})
	result := &UpdateResult{
		Success:         false,
		Status:          StatusFailed,
		Message:         message,
		UpdatedFiles:    updated,
		RequiresRestart: requiresRestart,
	}
	return result, errorwrapper.WrapError(cause, message)
}

func (uo *UpdateOrchestrator) setProgress(mutate func(*UpdateProgress)) {
	uo.stateMu.Lock()
	mutate(&uo.progress)
	snapshot := uo.progress
	uo.stateMu.Unlock()
	uo.notifyObservers(snapshot)
}

func (uo *UpdateOrchestrator) notifyObservers(snapshot UpdateProgress) {
	uo.observerMu.RLock()
	observers := make([]ProgressObserver, len(uo.observers))
	copy(observers, uo.observers)
	uo.observerMu.RUnlock()

	for _, observer := range observers {
		uo.notifyObserver(observer, snapshot)
	}
}

// notifyObserver delivers one snapshot, containing any observer panic.
func (uo *UpdateOrchestrator) notifyObserver(observer ProgressObserver, snapshot UpdateProgress) {
	defer func() {
		if r := recover(); r != nil {
			uo.logger.Error().
				Interface("panic", r).
				Str("status", snapshot.Status.String()).
				Msg("Progress observer panicked")
		}
	}()
	observer.OnProgress(snapshot)
}
