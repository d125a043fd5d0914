package scheduler

import (
	"context"
	"time"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// WatchScheduler runs update cycles on a fixed interval. Jobs run in
// singleton mode so a slow cycle is never overlapped by the next tick.
type WatchScheduler struct {
	runner    *CycleRunner
	interval  time.Duration
	scheduler gocron.Scheduler
	logger    zerolog.Logger
}

// NewWatchScheduler creates a watch scheduler from the scheduler config.
func NewWatchScheduler(cfg config.SchedulerConfig, runner *CycleRunner, logger zerolog.Logger) (*WatchScheduler, error) {
	if cfg.CycleMinutes < 1 {
		return nil, errorwrapper.NewValidationError("cycle_minutes", cfg.CycleMinutes, "watch cycle must be at least one minute")
	}

	gcScheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to create scheduler")
	}

	return &WatchScheduler{
		runner:    runner,
		interval:  time.Duration(cfg.CycleMinutes) * time.Minute,
		scheduler: gcScheduler,
		logger:    logger.With().Str("component", "WatchScheduler").Logger(),
	}, nil
}

// Start schedules the update job and blocks until ctx is cancelled. The
// first cycle runs immediately; later cycles follow the configured
// interval. Cycle failures are logged and the schedule keeps going.
func (ws *WatchScheduler) Start(ctx context.Context) error {
	_, err := ws.scheduler.NewJob(
		gocron.DurationJob(ws.interval),
		gocron.NewTask(func() { ws.runCycle(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errorwrapper.WrapError(err, "failed to schedule update job")
	}

	ws.logger.Info().Dur("interval", ws.interval).Msg("Watch mode started")
	ws.scheduler.Start()

	<-ctx.Done()
	ws.logger.Info().Msg("Watch mode stopping")
	if err := ws.scheduler.Shutdown(); err != nil {
		return errorwrapper.WrapError(err, "scheduler shutdown failed")
	}
	return nil
}

func (ws *WatchScheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := ws.runner.Run(ctx, TriggerWatch)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Update cycle failed")
		return
	}
	ws.logger.Info().
		Str("status", result.Status.String()).
		Int("files_applied", len(result.UpdatedFiles)).
		Msg("Update cycle finished")
}
