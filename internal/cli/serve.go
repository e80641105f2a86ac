package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amaralx48x/ama-imoveis-app-sub000/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr, bootstrap string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured backend over HTTP and websockets",
		Long: `Serve exposes the configured backend to remote clients: document reads
and writes, queries, live watches over a websocket, and the demo
bootstrap snapshot from --bootstrap. It runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetString(cfgKeyServeAddr)
			}
			cfg, err := a.backendConfig()
			if err != nil {
				return err
			}
			backend, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer backend.Detach()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return sysError(fmt.Errorf("listen on %s: %w", addr, err))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ln, server.New(backend, bootstrap))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: serve.addr)")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "", "demo bootstrap snapshot file served at "+server.BootstrapPath)
	return cmd
}

// serve runs h on ln until ctx is done, then shuts the server down.
func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("serve: listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		glog.Infof("serve: shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return sysError(fmt.Errorf("serve: %w", err))
	}
	return nil
}
