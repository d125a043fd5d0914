package cmd

import (
	"fmt"

	"github.com/aleister1102/hotpatch/internal/installer"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete backup directories older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			days := retentionDays
			if days <= 0 {
				days = app.cfg.BackupConfig.RetentionDays
			}

			manager := installer.NewBackupManager(resolveUnderRoot(app.cfg.BackupConfig.BackupDir), app.logger)
			removed, err := manager.CleanupOldBackups(days)
			if err != nil {
				return err
			}

			fmt.Printf("Removed %d backup directories older than %d days.\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&retentionDays, "days", 0, "Retention period in days (defaults to the configured value)")
	return cmd
}
