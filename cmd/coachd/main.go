// FocusCoach Daemon - serves the decision engine over HTTP
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantumlife/focuscoach/internal/api"
	"github.com/quantumlife/focuscoach/internal/bootstrap"
	"github.com/quantumlife/focuscoach/internal/logging"
)

var (
	configPath string
	dataDir    string
	host       string
	port       int

	version = "0.1.0-alpha"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "coachd",
		Short:        "FocusCoach Daemon - contextual intervention API",
		Version:      version,
		SilenceUsage: true,
		RunE:         runDaemon,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory")
	rootCmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	rootCmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap.LoadConfig(configPath, dataDir, os.Stdout)
	if err != nil {
		return err
	}
	defer logging.Sync()

	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if err := bootstrap.EnsureDataDir(cfg); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.Open(ctx, cfg, bootstrap.Options{Metrics: true})
	if err != nil {
		return err
	}
	defer engine.Close()

	log := logging.WithField("component", "daemon")
	log.Info("starting coachd %s (storage %s, data %s)", version, cfg.Storage.Driver, cfg.DataDir)

	server := api.New(api.Config{
		Addr:           cfg.Addr(),
		Service:        engine.Service,
		Gatherer:       engine.Registry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		Version:        version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Handle shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := bootstrap.ShutdownContext(cfg)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
