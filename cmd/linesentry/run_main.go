package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/alert"
	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/confidence"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/fingerprint"
	"github.com/linesentry/core/internal/grader"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/monitor"
	"github.com/linesentry/core/internal/normalize"
	"github.com/linesentry/core/internal/provider"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
	"github.com/linesentry/core/internal/scheduler"
	"github.com/linesentry/core/internal/store/postgres"
)

const shutdownGrace = 30 * time.Second

// runService wires the whole pipeline and runs it until interrupted:
// the poller and grader loops, the alert dispatcher with every enabled
// sink, and the monitor server.
func runService(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.App.LogLevel)

	m := metrics.NewRegistry()

	cacheSvc := openCache(cfg, m)
	reg := registry.New(cacheSvc, cfg.History)

	guard := provider.NewGuard("oddsapi", cfg.Provider)
	client := oddsapi.NewClient(cfg.Provider, guard, m)

	repo, err := postgres.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open signal store: %w", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure signal schema: %w", err)
	}

	hub := monitor.NewHub(m)

	sinks, err := buildSinks(cfg, hub)
	if err != nil {
		return err
	}

	engine := alert.NewEngine(cfg.Alert, cacheSvc, m)
	dispatcher := alert.NewDispatcher(cfg.Alert, m, sinks...)

	poller := scheduler.New(cfg.Poller, cfg.ClosingLine, scheduler.Deps{
		Registry:     reg,
		Client:       client,
		Normalizer:   normalize.New(reg, m),
		Fingerprints: fingerprint.NewService(reg),
		Scorer:       confidence.NewScorer(cfg.Confidence),
		Engine:       engine,
		Dispatcher:   dispatcher,
		Cache:        cacheSvc,
		Signals:      repo,
		Metrics:      m,
	})
	outcomes := grader.New(cfg.Grader, reg, client, cacheSvc, repo, m)
	server := monitor.NewServer(cfg.Monitor, hub, cacheSvc, repo, guard, m)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		outcomes.Run(ctx)
	}()

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
			log.Error().Err(err).Msg("monitor server failed")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("monitor shutdown failed")
	}

	wg.Wait()
	log.Info().Msg("pipeline stopped")
	return nil
}

// openCache prefers Redis and degrades to the in-process store so a
// cache outage never takes the pipeline down. Dedupe state becomes
// process-local in that mode, which is the lesser failure.
func openCache(cfg *config.Config, m *metrics.Registry) *cache.Service {
	redisStore, err := cache.NewRedisStore(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).
			Str("addr", cfg.Cache.RedisAddr).
			Msg("redis unavailable, using in-process cache")
		return cache.NewService(cache.NewMemoryStore(65536), cfg.Cache, m)
	}
	log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("redis cache connected")
	return cache.NewService(redisStore, cfg.Cache, m)
}

// buildSinks assembles the delivery fan-out: chat sinks as configured,
// plus the log sink and the monitor stream, which are always on.
func buildSinks(cfg *config.Config, hub *monitor.Hub) ([]alert.Sink, error) {
	sinks := []alert.Sink{alert.NewLogSink()}

	if cfg.Alert.Discord.Enabled {
		discord, err := alert.NewDiscordSink(cfg.Alert.Discord)
		if err != nil {
			return nil, fmt.Errorf("discord sink: %w", err)
		}
		sinks = append(sinks, discord)
	}
	if cfg.Alert.Telegram.Enabled {
		telegram, err := alert.NewTelegramSink(cfg.Alert.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, telegram)
	}
	sinks = append(sinks, monitor.NewStreamSink(hub))
	return sinks, nil
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return
	}
	// --verbose wins over the configured level.
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		zerolog.SetGlobalLevel(parsed)
	}
}
