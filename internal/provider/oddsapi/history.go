package oddsapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/provider"
)

// minSampleDelay spaces historical requests so a series fetch cannot
// flood the provider even when misconfigured.
const minSampleDelay = 100 * time.Millisecond

type historicalOddsEnvelope struct {
	Timestamp time.Time   `json:"timestamp"`
	Data      []OddsEvent `json:"data"`
}

type historicalEventEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Data      OddsEvent `json:"data"`
}

// HistoricalOdds returns the sport-wide odds snapshot the provider
// recorded at or before the given time. A 4xx means the window or plan
// does not cover the request; that is an empty result, not a failure.
func (c *Client) HistoricalOdds(ctx context.Context, sportKey string, at time.Time, markets []string) ([]OddsEvent, error) {
	params := url.Values{}
	params.Set("regions", c.cfg.Regions)
	params.Set("markets", strings.Join(markets, ","))
	params.Set("oddsFormat", "american")
	params.Set("date", at.UTC().Format(time.RFC3339))

	var envelope historicalOddsEnvelope
	path := fmt.Sprintf("/%s/historical/sports/%s/odds", apiVersion, sportKey)
	if err := c.get(ctx, "historical_odds", path, params, &envelope); err != nil {
		if provider.IsClientError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch historical odds: %w", err)
	}
	return envelope.Data, nil
}

// HistoricalEventOdds returns one event's odds snapshot at a time, or
// nil when the provider has nothing for that timestamp.
func (c *Client) HistoricalEventOdds(ctx context.Context, sportKey, eventID string, at time.Time, markets []string) (*OddsEvent, error) {
	params := url.Values{}
	params.Set("regions", c.cfg.Regions)
	params.Set("markets", strings.Join(markets, ","))
	params.Set("oddsFormat", "american")
	params.Set("date", at.UTC().Format(time.RFC3339))

	var envelope historicalEventEnvelope
	path := fmt.Sprintf("/%s/historical/sports/%s/events/%s/odds", apiVersion, sportKey, eventID)
	if err := c.get(ctx, "historical_event_odds", path, params, &envelope); err != nil {
		if provider.IsClientError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch historical event odds: %w", err)
	}
	if envelope.Data.ID == "" {
		return nil, nil
	}
	return &envelope.Data, nil
}

// LineHistory builds a line-movement series for one market: historical
// snapshots sampled at regular intervals over daysBack, then the
// current odds appended. Samples the provider has no data for are
// dropped.
func (c *Client) LineHistory(ctx context.Context, sportKey, eventID, marketKey string, daysBack, perDay int) ([]HistorySample, error) {
	if daysBack <= 0 || perDay <= 0 {
		return nil, fmt.Errorf("line history requires positive daysBack and perDay, got %d/%d", daysBack, perDay)
	}

	delay := c.cfg.HistoricalSampleDelay()
	if delay < minSampleDelay {
		delay = minSampleDelay
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -daysBack)
	step := 24 * time.Hour / time.Duration(perDay)
	markets := []string{marketKey}

	samples := make([]HistorySample, 0, daysBack*perDay+1)
	for i := 0; i < daysBack*perDay; i++ {
		at := start.Add(step * time.Duration(i))
		if !at.Before(now) {
			break
		}
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		event, err := c.HistoricalEventOdds(ctx, sportKey, eventID, at, markets)
		if err != nil {
			return nil, err
		}
		if event == nil {
			continue
		}
		samples = append(samples, HistorySample{At: at, Event: *event})
	}

	current, err := c.EventOdds(ctx, sportKey, eventID, markets)
	if err != nil {
		// The series is still useful without the live point.
		log.Warn().Err(err).Str("event_id", eventID).Str("market", marketKey).Msg("line history missing current snapshot")
		return samples, nil
	}
	samples = append(samples, HistorySample{At: now, Event: *current})
	return samples, nil
}
