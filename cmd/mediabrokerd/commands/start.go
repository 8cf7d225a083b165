package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alxayo/mediabroker/internal/broker"
	"github.com/alxayo/mediabroker/internal/brokerconfig"
	"github.com/alxayo/mediabroker/internal/logger"
	"github.com/alxayo/mediabroker/internal/settings"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the broker daemon",
	Long: `Start the broker daemon: brings up the node, add-on, buffer, format,
and default-endpoint registries, optionally opens the settings store, and
serves the read-only admin HTTP surface.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := brokerconfig.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("invalid log level, using default", "level", cfg.LogLevel)
	}

	b := broker.New(nil)
	defer b.Close()

	if cfg.SettingsPath != "" {
		store, err := settings.Open(cfg.SettingsPath)
		if err != nil {
			return fmt.Errorf("open settings store at %s: %w", cfg.SettingsPath, err)
		}
		defer store.Close()
		b.SetSettings(store)
		logger.Info("settings store opened", "path", cfg.SettingsPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		b.EnableMetrics(ctx, prometheus.DefaultRegisterer, 10*time.Second)
		logger.Info("metrics enabled")
	}

	mux := http.NewServeMux()
	mux.Handle("/", b.AdminRouter())
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	httpSrv := &http.Server{Addr: cfg.AdminAddr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("admin HTTP surface listening", "addr", cfg.AdminAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("admin HTTP server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin HTTP server shutdown error", "error", err)
	}

	return nil
}
