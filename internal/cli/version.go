package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/amaralx48x/ama-imoveis-app-sub000"

// Version is the release version, set at build time with
// -ldflags "-X github.com/amaralx48x/ama-imoveis-app-sub000/internal/cli.Version=...".
var Version = "0.0.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the listings version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "listings v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
