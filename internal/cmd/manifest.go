package cmd

import (
	"fmt"

	"github.com/aleister1102/hotpatch/internal/manifest"
	"github.com/spf13/cobra"
)

func newManifestCmd() *cobra.Command {
	var (
		releaseVersion string
		baseURL        string
		outputPath     string
		description    string
		minVersion     string
		changelog      []string
	)

	cmd := &cobra.Command{
		Use:   "manifest <release-dir>",
		Short: "Generate an update manifest from a release directory",
		Long: `Manifest walks a release tree with the configured scan patterns and
exclusions, hashes every eligible file, and writes the manifest JSON the
update server publishes. Download URLs are the base URL joined with each
file's relative path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			generator := manifest.NewGenerator(manifest.GeneratorConfig{
				Version:         releaseVersion,
				Description:     description,
				MinVersion:      minVersion,
				Changelog:       changelog,
				BaseDownloadURL: baseURL,
				FilePatterns:    app.cfg.UpdateConfig.FilePatterns,
				ExcludedPaths:   app.cfg.UpdateConfig.ExcludedPaths,
			}, app.logger)

			m, err := generator.Generate(args[0])
			if err != nil {
				return err
			}
			if err := generator.WriteFile(m, outputPath); err != nil {
				return err
			}

			fmt.Printf("Wrote manifest for version %s with %d files to %s\n", m.Version, len(m.Files), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&releaseVersion, "release-version", "", "Version string the manifest announces")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL joined with file paths to form download URLs")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "update_manifest.json", "Output path for the manifest JSON")
	cmd.Flags().StringVar(&description, "description", "", "Release description")
	cmd.Flags().StringVar(&minVersion, "min-version", "", "Advisory compatibility floor")
	cmd.Flags().StringArrayVar(&changelog, "changelog", nil, "Changelog entry (repeatable)")
	_ = cmd.MarkFlagRequired("release-version")
	_ = cmd.MarkFlagRequired("base-url")

	return cmd
}
