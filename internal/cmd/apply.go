package cmd

import (
	"fmt"

	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/notifier"
	"github.com/aleister1102/hotpatch/internal/progress"
	"github.com/aleister1102/hotpatch/internal/scheduler"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Check for updates and apply them",
		Long: `Apply runs one full update pass: check the server, download the files
whose digests differ, back up and install them, and persist the hash
ledger. The run is recorded in the update history database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
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

			ctx, cancel := signalContext()
			defer cancel()

			runner := scheduler.NewCycleRunner(updater, runDB, notify, app.logger)
			result, err := runner.Run(ctx, scheduler.TriggerManual)
			if err != nil {
				return err
			}

			if quiet {
				fmt.Println(result.Message)
			}
			if result.RequiresRestart {
				fmt.Println("Restart the application to finish applying this update.")
			}
			return nil
		},
	}
}
