package cmd

import (
	"fmt"

	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/spf13/cobra"
)

func newVersionCmd(binaryVersion string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the binary version and the installed tree version",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}

			fmt.Printf("hotpatch %s\n", binaryVersion)
			fmt.Printf("installed tree: %s\n", config.ResolveCurrentVersion(app.cfg.UpdateConfig, appRoot))
			return nil
		},
	}
}
