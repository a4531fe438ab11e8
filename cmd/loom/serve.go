package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/loom/internal/presentation/tui"
	httpAdapter "github.com/aretw0/loom/pkg/adapters/http"
	"github.com/aretw0/loom/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serves the REST API described by /openapi.yaml, a server-sent event
stream of document and library changes on /events, and Prometheus metrics on
/metrics. The library is watched and reloaded when it changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		ws, done, err := openWorkspace(metrics)
		if err != nil {
			return err
		}
		defer done()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := ws.Watch(ctx); err != nil {
			logger.Warn("Library will not be reloaded", "err", err)
		}

		handler, err := httpAdapter.NewHandler(ws,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(reg),
			httpAdapter.WithCORSOrigin(cfg.Server.CORSOrigin),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(tui.NewOutput(os.Stdout, true))
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Loom server", "addr", srv.Addr, "library", cfg.Library, "store", cfg.Store.Kind)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil

		case <-ctx.Done():
			logger.Info("Shutting down")

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Close ends SSE streams so Shutdown does not wait on them.
			ws.Close()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			logger.Info("Loom server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides server.addr)")
}
