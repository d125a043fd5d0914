package scheduler

import (
	"context"
	"time"

	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/notifier"
	"github.com/aleister1102/hotpatch/internal/orchestrator"
	"github.com/rs/zerolog"
)

// Run triggers recorded in the run history.
const (
	TriggerManual = "manual"
	TriggerWatch  = "watch"
)

// CycleRunner executes one update cycle end to end: record the run,
// perform the update, persist the outcome, notify, and prune old
// backups after a successful apply. It is shared by the manual apply
// verb and the watch scheduler.
type CycleRunner struct {
	updater  *orchestrator.UpdateOrchestrator
	runDB    *datastore.RunDB
	notifier *notifier.Notifier
	logger   zerolog.Logger
}

// NewCycleRunner creates a cycle runner. runDB and notify may be nil;
// the corresponding side effects are skipped.
func NewCycleRunner(updater *orchestrator.UpdateOrchestrator, runDB *datastore.RunDB, notify *notifier.Notifier, logger zerolog.Logger) *CycleRunner {
	return &CycleRunner{
		updater:  updater,
		runDB:    runDB,
		notifier: notify,
		logger:   logger.With().Str("component", "CycleRunner").Logger(),
	}
}

// Run performs one full update cycle. The returned result mirrors the
// orchestrator's; run-history and notification failures never mask it.
func (cr *CycleRunner) Run(ctx context.Context, trigger string) (*orchestrator.UpdateResult, error) {
	startTime := time.Now()
	runID := cr.recordStart(trigger, startTime)

	result, err := cr.updater.PerformUpdate(ctx)
	duration := time.Since(startTime)

	cr.recordCompletion(runID, result, err)
	cr.notifyOutcome(ctx, result, err, duration)

	if err == nil && len(result.UpdatedFiles) > 0 {
		if removed, cleanupErr := cr.updater.CleanupOldBackups(); cleanupErr != nil {
			cr.logger.Warn().Err(cleanupErr).Msg("Backup cleanup after update failed")
		} else if removed > 0 {
			cr.logger.Info().Int("removed", removed).Msg("Pruned old backup directories")
		}
	}

	return result, err
}

func (cr *CycleRunner) recordStart(trigger string, startTime time.Time) int64 {
	if cr.runDB == nil {
		return 0
	}
	runID, err := cr.runDB.RecordRunStart(trigger, startTime)
	if err != nil {
		cr.logger.Warn().Err(err).Msg("Failed to record run start")
		return 0
	}
	return runID
}

func (cr *CycleRunner) recordCompletion(runID int64, result *orchestrator.UpdateResult, runErr error) {
	if cr.runDB == nil || runID == 0 {
		return
	}

	errSummary := ""
	if runErr != nil {
		errSummary = runErr.Error()
	}
	// TotalFiles in the final snapshot is the planned batch size; it
	// stays zero when the check found nothing to do.
	planned := cr.updater.Progress().TotalFiles

	err := cr.runDB.CompleteRun(
		runID,
		time.Now(),
		result.Status.String(),
		result.ManifestVersion,
		planned,
		len(result.UpdatedFiles),
		result.RequiresRestart,
		errSummary,
	)
	if err != nil {
		cr.logger.Warn().Err(err).Int64("run_id", runID).Msg("Failed to record run completion")
	}
}

// notifyOutcome sends a webhook for terminal states only: a cycle that
// found nothing to update stays silent.
func (cr *CycleRunner) notifyOutcome(ctx context.Context, result *orchestrator.UpdateResult, runErr error, duration time.Duration) {
	if cr.notifier == nil || !result.Status.IsTerminal() {
		return
	}

	summary := notifier.RunSummary{
		Status:          result.Status.String(),
		Message:         result.Message,
		ManifestVersion: result.ManifestVersion,
		UpdatedFiles:    result.UpdatedFiles,
		RequiresRestart: result.RequiresRestart,
		Duration:        duration,
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	cr.notifier.NotifyRunOutcome(ctx, summary)
}
