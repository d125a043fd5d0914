package cmd

import (
	"errors"
	"fmt"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/aleister1102/hotpatch/internal/ledger"
	"github.com/spf13/cobra"
)

func newDriftCmd() *cobra.Command {
	var failOnDrift bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare the local tree against the last update's hash ledger",
		Long: `Drift re-hashes every tracked file and reports what changed since the
last successful update, without contacting the update server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			store := ledger.NewStore(resolveUnderRoot(app.cfg.StorageConfig.LedgerPath), app.logger)
			scanner := hasher.NewFileScanner(
				app.cfg.UpdateConfig.FilePatterns,
				app.cfg.ScanExclusions(),
				app.logger,
			)

			report, err := ledger.NewDetector(store, scanner, app.logger).Detect(appRoot)
			if err != nil {
				if errors.Is(err, errorwrapper.ErrNoBaseline) {
					fmt.Println("No baseline ledger found; run an update first.")
					return nil
				}
				return err
			}

			fmt.Printf("Baseline: version %s (%s)\n", report.BaselineVersion, report.BaselineTime)
			if report.Clean() {
				fmt.Printf("No drift: %d files match the baseline.\n", report.Unchanged)
				return nil
			}

			printDriftSection("Changed", report.Changed)
			printDriftSection("Added", report.Added)
			printDriftSection("Removed", report.Removed)
			fmt.Printf("Unchanged: %d\n", report.Unchanged)

			if failOnDrift {
				return errorwrapper.NewError(
					"drift detected: %d changed, %d added, %d removed",
					len(report.Changed), len(report.Added), len(report.Removed),
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit non-zero when the tree differs from the baseline")
	return cmd
}

func printDriftSection(label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(paths))
	for _, path := range paths {
		fmt.Println("  " + path)
	}
}
