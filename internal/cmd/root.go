package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	appRoot    string
	quiet      bool
)

// Execute builds the command tree and runs it.
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:   "hotpatch",
		Short: "Incremental self-update for deployed application trees",
		Long: `hotpatch keeps a deployed application tree in sync with a published
release manifest. It downloads only the files whose digests differ,
verifies them, backs up what it overwrites, and reports whether the
host process needs a restart.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML/JSON configuration file")
	rootCmd.PersistentFlags().StringVarP(&appRoot, "root", "r", ".", "Application root directory to update")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the console progress display")

	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newDriftCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd(version))

	return rootCmd.Execute()
}
