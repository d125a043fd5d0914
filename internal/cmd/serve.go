package cmd

import (
	"github.com/aleister1102/hotpatch/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		listenAddr   string
		manifestPath string
		filesRoot    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a generated manifest and its release files over HTTP",
		Long: `Serve publishes the update contract clients consume: the manifest
endpoint under the configured namespace and the release files under
/files/. Use it for self-hosted deployments or end-to-end testing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			updateServer := server.NewUpdateServer(server.Config{
				ListenAddr:   listenAddr,
				Namespace:    app.cfg.ServerConfig.Namespace,
				ManifestPath: manifestPath,
				FilesRoot:    filesRoot,
			}, app.logger)

			ctx, cancel := signalContext()
			defer cancel()
			return updateServer.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&manifestPath, "manifest", "update_manifest.json", "Manifest JSON file to publish")
	cmd.Flags().StringVar(&filesRoot, "files-root", ".", "Release tree served under /files/")
	return cmd
}
