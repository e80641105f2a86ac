// Package cli implements the listings command-line interface.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/paths"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	pretty    bool
	compact   bool
}

// app is the state shared by one command tree.
type app struct {
	flags rootFlags
	conf  paths.Config
	cfg   *viper.Viper
	out   io.Writer
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error  { return &exitError{code: exitSysError, err: err} }

// exitCode maps an error returned by a command to a process exit code.
// Errors without an explicit code are usage errors reported by cobra.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// NewRootCmd creates the top-level "listings" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{out: os.Stdout}
	root := &cobra.Command{
		Use:   "listings",
		Short: "Read, write and watch listing documents",
		Long: "listings works with the documents of the real-estate listing platform\n" +
			"(agents, properties, contacts, leads, landing pages and site settings)\n" +
			"on a local SQLite store, a Postgres database or a remote server.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			if cmd.Name() == "version" {
				return nil
			}
			conf, err := paths.ResolveConfig(a.flags.configDir)
			if err != nil {
				return sysError(err)
			}
			v, err := loadConfig(conf)
			if err != nil {
				return sysError(err)
			}
			a.conf, a.cfg = conf, v
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir or "+paths.EnvConfigDir+")")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	pf.StringVar(&a.flags.backend, "backend", "", "backend override: sqlite, postgres or remote")
	pf.BoolVar(&a.flags.pretty, "pretty", false, "indent JSON output even when stdout is not a terminal")
	pf.BoolVar(&a.flags.compact, "compact", false, "print JSON on one line even on a terminal")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newSetCmd(a))
	root.AddCommand(newCreateCmd(a))
	root.AddCommand(newUpdateCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newDemoCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	defer glog.Flush()
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "listings:", err)
	}
	return exitCode(err)
}

// data resolves the data directory: --data-dir > config data_dir >
// LISTINGS_DATA_DIR > $(CWD)/.listings-db.
func (a *app) data() (paths.Data, error) {
	d, err := paths.ResolveData(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return paths.Data{}, sysError(err)
	}
	glog.V(1).Infof("data dir %s (from %s)", d.Dir, d.Source)
	return d, nil
}

// backendConfig builds the Attach configuration from config.yaml and flags.
func (a *app) backendConfig() (types.Config, error) {
	d, err := a.data()
	if err != nil {
		return types.Config{}, err
	}
	cfg := configFromViper(a.cfg, d.Dir)
	if a.flags.backend != "" {
		cfg.Backend = a.flags.backend
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, userError(fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg, nil
}
