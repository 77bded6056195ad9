package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/confidence"
	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/fingerprint"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/normalize"
	"github.com/linesentry/core/internal/provider"
	"github.com/linesentry/core/internal/provider/oddsapi"
	"github.com/linesentry/core/internal/registry"
)

const scanTimeout = 30 * time.Second

type scanRow struct {
	event  oddsapi.OddsEvent
	market domain.MarketDefinition
	fp     domain.MarketFingerprint
	score  domain.ConfidenceScore
}

// runScan pulls one sport's board once and prints the consensus per
// market. Nothing is cached or persisted and no alerts fire; it is a
// read-only look at what the pipeline would see on its next tick.
func runScan(configPath string, args []string, marketFilter string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyLogLevel(cfg.App.LogLevel)

	m := metrics.NewRegistry()
	cacheSvc := cache.NewService(cache.NewMemoryStore(8192), cfg.Cache, m)
	reg := registry.New(cacheSvc, cfg.History)

	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	sport, ok := reg.ResolveSportByKeyword(strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("unknown sport %q", strings.Join(args, " "))
	}

	markets := scanMarkets(reg.MarketsForSport(ctx, sport.Key), marketFilter)
	if len(markets) == 0 {
		if marketFilter != "" {
			return fmt.Errorf("no game-board market %q for %s", marketFilter, sport.Key)
		}
		return fmt.Errorf("no game-board markets configured for %s", sport.Key)
	}

	guard := provider.NewGuard("oddsapi", cfg.Provider)
	client := oddsapi.NewClient(cfg.Provider, guard, m)

	books := reg.AccessibleBookmakers(ctx, domain.TierSharp)
	bookKeys := make([]string, len(books))
	for i, b := range books {
		bookKeys[i] = b.Key
	}
	marketKeys := make([]string, len(markets))
	for i, mk := range markets {
		marketKeys[i] = mk.Key
	}

	events, err := client.Odds(ctx, sport.Key, marketKeys, bookKeys)
	if err != nil {
		return fmt.Errorf("failed to fetch odds: %w", err)
	}

	normalizer := normalize.New(reg, m)
	prints := fingerprint.NewService(reg)
	scorer := confidence.NewScorer(cfg.Confidence)

	var rows []scanRow
	for i := range events {
		for _, market := range markets {
			snapshots := normalizer.Normalize(&events[i], market)
			if len(snapshots) == 0 {
				continue
			}
			fp, err := prints.Create(events[i].ID, market, snapshots, nil)
			if err != nil {
				continue
			}
			rows = append(rows, scanRow{
				event:  events[i],
				market: market,
				fp:     fp,
				score:  scorer.Score(fp),
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].event.CommenceTime.Equal(rows[j].event.CommenceTime) {
			return rows[i].event.CommenceTime.Before(rows[j].event.CommenceTime)
		}
		if rows[i].event.ID != rows[j].event.ID {
			return rows[i].event.ID < rows[j].event.ID
		}
		return rows[i].market.Key < rows[j].market.Key
	})

	fmt.Printf("📡 %s board: %d events, %d markets\n", sport.Name, len(events), len(markets))
	fmt.Printf("%-34s %-16s %8s %6s %6s %6s %-7s %-s\n", "MATCHUP", "MARKET", "LINE", "BOOKS", "CONF", "SCORE", "LEVEL", "TIPOFF")
	fmt.Printf("%-34s %-16s %8s %6s %6s %6s %-7s %-s\n", "-------", "------", "----", "-----", "----", "-----", "-----", "------")

	for _, row := range rows {
		matchup := row.event.AwayTeam + " @ " + row.event.HomeTeam
		fmt.Printf("%-34s %-16s %8.1f %6d %6d %6.1f %-7s %-s\n",
			matchup,
			row.market.Key,
			row.fp.ConsensusLine,
			len(row.fp.Books),
			row.fp.ConfirmingBooks,
			row.score.Total,
			row.score.Level,
			row.event.CommenceTime.Local().Format("Jan 2 15:04"))
	}

	if len(rows) == 0 {
		fmt.Println("no markets with usable snapshots")
	}
	return nil
}

// scanMarkets keeps the markets a one-shot board pull can cover: no
// player props (they need per-event requests) and no alternate boards.
func scanMarkets(markets []domain.MarketDefinition, filter string) []domain.MarketDefinition {
	var out []domain.MarketDefinition
	for _, m := range markets {
		if m.PlayerProp || m.Alternate {
			continue
		}
		if filter != "" && m.Key != filter {
			continue
		}
		out = append(out, m)
	}
	return out
}
