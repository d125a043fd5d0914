package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Query the update server without applying anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			updater, err := buildOrchestrator(app)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			m, err := updater.CheckForUpdates(ctx)
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Printf("Already up to date (version %s)\n", updater.CurrentVersion())
				return nil
			}

			fmt.Printf("Update available: %s -> %s (%d files)\n", updater.CurrentVersion(), m.Version, len(m.Files))
			if m.Description != "" {
				fmt.Println(m.Description)
			}
			for _, entry := range m.Changelog {
				fmt.Println("  - " + entry)
			}
			return nil
		},
	}
}
