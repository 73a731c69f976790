package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/vai-interview/pkg/gateway/config"
	"github.com/vango-go/vai-interview/pkg/gateway/live/protocol"
	gatewayserver "github.com/vango-go/vai-interview/pkg/gateway/server"
)

func newServeCmd(stderr io.Writer, deps gatewayDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve live interview sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), stderr, deps)
		},
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runServe(ctx context.Context, stderr io.Writer, deps gatewayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.openBackends == nil || deps.newGateway == nil {
		return errors.New("missing gateway dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(stderr, cfg.LogLevel, cfg.LogJSON)

	backends, closeBackends, err := deps.openBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	if closeBackends != nil {
		defer closeBackends()
	}

	gw := deps.newGateway(cfg, logger, backends)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	logger.Info("starting interview gateway",
		"addr", cfg.Addr,
		"scorer", cfg.Scorer,
		"speech", cfg.SpeechEnabled(),
		"postgres", cfg.DatabaseURL != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case sig := <-sigCh:
			logger.Info("shutdown signal received", "signal", sig.String())
		}
		drainSessions(gw, cfg, logger)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("interview gateway stopped")
	return nil
}

// drainSessions refuses new sessions, warns live candidates, then waits out
// the grace period before cancelling whatever is left. Hijacked websocket
// connections are not tracked by http.Server.Shutdown.
func drainSessions(gw *gatewayserver.Server, cfg config.Config, logger *slog.Logger) {
	gw.Lifecycle().SetDraining(true)
	tracker := gw.Sessions()
	if n := tracker.NotifyAll(protocol.CodeServerDraining, "server is shutting down"); n > 0 {
		logger.Info("draining live sessions", "sessions", n, "grace", cfg.ShutdownGracePeriod)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if !tracker.Wait(waitCtx) {
		logger.Warn("grace period elapsed; cancelling live sessions", "sessions", tracker.CancelAll())
	}
}
