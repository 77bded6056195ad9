package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/monitor"
	"github.com/linesentry/core/internal/provider"
)

// runMonitor starts the monitor server alone: health, readiness,
// Prometheus metrics, and the alert WebSocket stream. Without the
// poller in-process the stream stays silent, but the endpoints are
// useful for probing a deployment or scraping a cache-only node.
func runMonitor(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.App.LogLevel)

	m := metrics.NewRegistry()
	cacheSvc := openCache(cfg, m)
	guard := provider.NewGuard("oddsapi", cfg.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := monitor.NewHub(m)
	go hub.Run(ctx)

	// No signal store in this mode; readiness reports on the cache only.
	server := monitor.NewServer(cfg.Monitor, hub, cacheSvc, nil, guard, m)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
