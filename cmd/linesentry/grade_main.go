package main

import (
	"context"
	"fmt"
	"time"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/grader"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
	"github.com/linesentry/core/internal/store/postgres"
)

const gradeTimeout = 5 * time.Minute

// runGrade executes one grading sweep and exits. Unlike the cache used
// for polling, Redis is required here: the closing lines to grade
// against live in it, and an empty in-process store would make the
// sweep a silent no-op.
func runGrade(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.App.LogLevel)

	m := metrics.NewRegistry()

	redisStore, err := cache.NewRedisStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("redis required for grading: %w", err)
	}
	cacheSvc := cache.NewService(redisStore, cfg.Cache, m)
	reg := registry.New(cacheSvc, cfg.History)

	guard := provider.NewGuard("oddsapi", cfg.Provider)
	client := oddsapi.NewClient(cfg.Provider, guard, m)

	repo, err := postgres.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open signal store: %w", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), gradeTimeout)
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure signal schema: %w", err)
	}

	graded := grader.New(cfg.Grader, reg, client, cacheSvc, repo, m).RunSweep(ctx)
	fmt.Printf("✅ graded %d signals\n", graded)
	return nil
}
