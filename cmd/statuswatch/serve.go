package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/statuswatch/statuswatch/config"
	"github.com/statuswatch/statuswatch/internal/bus"
	"github.com/statuswatch/statuswatch/internal/console"
	"github.com/statuswatch/statuswatch/internal/poller"
	"github.com/statuswatch/statuswatch/internal/server"
	"github.com/statuswatch/statuswatch/internal/store"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the statuswatch tracker.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status tracker",
	Long: `Start the statuswatch tracker.

The tracker will:
  - Load configuration from the specified YAML file
  - Start one polling loop per configured provider
  - Serve the status API and SSE event stream on the configured port

The tracker runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  statuswatch serve -c config.yaml
  statuswatch serve --config /etc/statuswatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"providers", len(cfg.Providers),
		"poll_interval", cfg.PollInterval.Duration().String(),
		"port", cfg.Port,
	)

	providerCfgs := make([]poller.ProviderConfig, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providerCfgs = append(providerCfgs, poller.ProviderConfig{
			Name:         p.Name,
			BaseURL:      p.URL,
			PollInterval: p.EffectiveInterval(cfg),
			Timeout:      p.EffectiveTimeout(cfg),
		})
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus := bus.New(cfg.QueueCapacity, logger)
	defer eventBus.Close()

	st := store.NewMemoryStore()
	registry := poller.NewRegistry(providerCfgs, eventBus, st, cfg.FailureThreshold, logger)

	srv := server.NewServer(st, eventBus, cfg.Port, registry.Count(), logger)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return registry.Run(gctx)
	})
	if cfg.Console {
		renderer := console.NewRenderer(eventBus, os.Stdout, logger)
		g.Go(func() error {
			return renderer.Run(gctx)
		})
	}

	logger.Info("statuswatch running",
		"monitors", registry.Count(),
		"events_url", fmt.Sprintf("http://localhost:%d/api/events", cfg.Port),
	)

	// wait for shutdown with a bounded grace period
	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Wait()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("runtime error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("runtime error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
