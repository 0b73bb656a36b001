package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/platform/config"
	"backoffice/internal/platform/httpserver"
	"backoffice/internal/platform/logger"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides BACKOFFICE_ADDR)")
	return cmd
}

// serve keeps the process lifecycle small. Business logic lives in internal packages.
func serve(parent context.Context, cfg config.Server) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("closing backends", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, a.Router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting backoffice", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if letters := a.Bus.DeadLetterQueue(); len(letters) > 0 {
		log.Warn("shutting down with undelivered dead letters", "count", len(letters))
	}
	log.Info("backoffice stopped")
	return nil
}
