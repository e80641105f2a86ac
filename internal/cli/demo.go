package cli

import (
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/demo"
	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/listing"
)

// demoStatus is printed by the demo subcommands.
type demoStatus struct {
	Active  bool   `json:"active"`
	Session string `json:"session,omitempty"`
	Agent   string `json:"agent,omitempty"`
}

func newDemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Manage the local demo session",
		Long: `A demo session serves reads from a seeded cache instead of the backend
and drops writes. It lives in the data directory, so it spans invocations
until it is ended.`,
	}
	cmd.AddCommand(newDemoStartCmd(a))
	cmd.AddCommand(newDemoEndCmd(a))
	cmd.AddCommand(newDemoStatusCmd(a))
	return cmd
}

func (a *app) demoStore() (*demo.Store, func() error, error) {
	d, err := a.data()
	if err != nil {
		return nil, nil, err
	}
	storage, err := a.openSessionStorage(d)
	if err != nil {
		return nil, nil, err
	}
	return demo.NewStore(storage), storage.Close, nil
}

func newDemoStartCmd(a *app) *cobra.Command {
	var snapshotFile, url, agent string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a demo session seeded from a bootstrap snapshot",
		Long: `Start reads a bootstrap snapshot from --snapshot or downloads it from
--url (default: demo.bootstrap_url in config.yaml), maps its fields onto
the documents of the demo agent and starts a new session. Any session
already running is replaced.

Example:
  listings demo start --snapshot demo.json
  listings demo start --url https://example.com/demo/bootstrap --agent demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if agent == "" {
				agent = a.cfg.GetString(cfgKeyDemoAgentID)
			}
			if url == "" && snapshotFile == "" {
				url = a.cfg.GetString(cfgKeyDemoBootstrapURL)
			}

			var (
				snapshot map[string]json.RawMessage
				err      error
			)
			switch {
			case snapshotFile != "":
				snapshot, err = demo.LoadBootstrapFile(snapshotFile)
			case url != "":
				snapshot, err = demo.FetchBootstrap(cmd.Context(), nil, url)
			default:
				return userError(fmt.Errorf("no bootstrap source: pass --snapshot or --url, or set %s", cfgKeyDemoBootstrapURL))
			}
			if err != nil {
				return userError(err)
			}

			layout, err := listing.DemoLayout(agent)
			if err != nil {
				return userError(err)
			}

			store, closeStore, err := a.demoStore()
			if err != nil {
				return err
			}
			defer closeStore()

			id, err := store.Begin(snapshot, layout)
			if err != nil {
				return userError(err)
			}
			glog.Infof("demo: session %s started for agent %s", id, agent)
			return a.printJSON(demoStatus{Active: true, Session: id, Agent: agent})
		},
	}
	cmd.Flags().StringVar(&snapshotFile, "snapshot", "", "bootstrap snapshot file")
	cmd.Flags().StringVar(&url, "url", "", "bootstrap endpoint URL")
	cmd.Flags().StringVar(&agent, "agent", "", "agent ID the snapshot seeds (default: demo.agent_id)")
	return cmd
}

func newDemoEndCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the demo session and discard its cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.demoStore()
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.End(); err != nil {
				return sysError(fmt.Errorf("end demo session: %w", err))
			}
			return a.printJSON(demoStatus{Active: false})
		},
	}
}

func newDemoStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a demo session is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.demoStore()
			if err != nil {
				return err
			}
			defer closeStore()
			return a.printJSON(demoStatus{Active: store.IsDemo(), Session: store.Session()})
		},
	}
}
