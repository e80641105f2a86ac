package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: "Create the configuration and data directories, then attach and detach\n" +
			"the configured backend once so its storage is ready.\n\n" +
			"With --force, config.yaml is rewritten from the effective settings,\n" +
			"including --backend and --data-dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.backendConfig()
			if err != nil {
				return err
			}
			if force {
				if err := writeConfig(a.conf.File, configFileFrom(a.cfg, cfg)); err != nil {
					return sysError(fmt.Errorf("write config: %w", err))
				}
			}

			backend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			if err := backend.Detach(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			fmt.Fprintln(a.out, "listings initialized successfully")
			fmt.Fprintln(a.out, "  config: ", a.conf.Dir)
			fmt.Fprintln(a.out, "  data:   ", cfg.DataDir)
			fmt.Fprintln(a.out, "  backend:", cfg.Backend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rewrite config.yaml from the effective settings")
	return cmd
}
