package cmd

import (
	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/notifier"
	"github.com/aleister1102/hotpatch/internal/progress"
	"github.com/aleister1102/hotpatch/internal/scheduler"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var cycleMinutes int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Check for and apply updates on a fixed interval",
		Long: `Watch runs update cycles until interrupted. Cycles never overlap: a
slow cycle delays the next one instead of racing it. Every cycle is
recorded in the run database, and terminal outcomes are posted to the
configured webhook.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			if cycleMinutes > 0 {
				app.cfg.SchedulerConfig.CycleMinutes = cycleMinutes
			}

			updater, err := buildOrchestrator(app)
			if err != nil {
				return err
			}
			if !quiet {
				updater.RegisterObserver(progress.NewConsoleObserver())
			}

			runDB, err := datastore.NewRunDB(resolveUnderRoot(app.cfg.SchedulerConfig.SQLiteDBPath), app.logger)
			if err != nil {
				return err
			}
			defer runDB.Close()

			notify, err := notifier.NewNotifier(app.cfg.NotificationConfig, app.logger)
			if err != nil {
				return err
			}

			runner := scheduler.NewCycleRunner(updater, runDB, notify, app.logger)
			watcher, err := scheduler.NewWatchScheduler(app.cfg.SchedulerConfig, runner, app.logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return watcher.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&cycleMinutes, "interval", 0, "Minutes between cycles (overrides the configured value)")
	return cmd
}
