package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider"
)

const (
	providerName = "theoddsapi"
	apiVersion   = "v4"
	userAgent    = "linesentry/1.0"
)

// Client is a thin adapter over The Odds API v4. Every request runs
// under the provider guard; transport and status failures come back as
// *provider.Error so the guard can classify them.
type Client struct {
	cfg     config.ProviderConfig
	baseURL string
	httpc   *http.Client
	guard   *provider.Guard
	metrics *metrics.Registry
}

// NewClient builds a client for the configured provider.
func NewClient(cfg config.ProviderConfig, guard *provider.Guard, m *metrics.Registry) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.RequestTimeout()},
		guard:   guard,
		metrics: m,
	}
}

// Events lists upcoming and live fixtures for a sport.
func (c *Client) Events(ctx context.Context, sportKey string) ([]Event, error) {
	var events []Event
	path := fmt.Sprintf("/%s/sports/%s/events", apiVersion, sportKey)
	if err := c.get(ctx, "events", path, nil, &events); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return events, nil
}

// Odds lists current odds for a sport, filtered to the given markets
// and optionally to specific bookmakers.
func (c *Client) Odds(ctx context.Context, sportKey string, markets, bookmakers []string) ([]OddsEvent, error) {
	params := url.Values{}
	params.Set("regions", c.cfg.Regions)
	params.Set("markets", strings.Join(markets, ","))
	params.Set("oddsFormat", "american")
	if len(bookmakers) > 0 {
		params.Set("bookmakers", strings.Join(bookmakers, ","))
	}

	var events []OddsEvent
	path := fmt.Sprintf("/%s/sports/%s/odds", apiVersion, sportKey)
	if err := c.get(ctx, "odds", path, params, &events); err != nil {
		return nil, fmt.Errorf("fetch odds: %w", err)
	}
	return events, nil
}

// EventOdds lists current odds for a single event. Prop markets are
// only served through this endpoint.
func (c *Client) EventOdds(ctx context.Context, sportKey, eventID string, markets []string) (*OddsEvent, error) {
	params := url.Values{}
	params.Set("regions", c.cfg.Regions)
	params.Set("markets", strings.Join(markets, ","))
	params.Set("oddsFormat", "american")

	var event OddsEvent
	path := fmt.Sprintf("/%s/sports/%s/events/%s/odds", apiVersion, sportKey, eventID)
	if err := c.get(ctx, "event_odds", path, params, &event); err != nil {
		return nil, fmt.Errorf("fetch event odds: %w", err)
	}
	return &event, nil
}

// Scores lists recent scores. daysFrom widens the window to completed
// games up to that many days back (provider max 3).
func (c *Client) Scores(ctx context.Context, sportKey string, daysFrom int) ([]ScoreEvent, error) {
	params := url.Values{}
	if daysFrom > 0 {
		params.Set("daysFrom", strconv.Itoa(daysFrom))
	}

	var scores []ScoreEvent
	path := fmt.Sprintf("/%s/sports/%s/scores", apiVersion, sportKey)
	if err := c.get(ctx, "scores", path, params, &scores); err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	return scores, nil
}

// Markets returns the distinct market keys any book currently offers
// for an event, without prices.
func (c *Client) Markets(ctx context.Context, sportKey, eventID string) ([]string, error) {
	params := url.Values{}
	params.Set("regions", c.cfg.Regions)

	var event OddsEvent
	path := fmt.Sprintf("/%s/sports/%s/events/%s/markets", apiVersion, sportKey, eventID)
	if err := c.get(ctx, "markets", path, params, &event); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	seen := make(map[string]bool)
	var keys []string
	for _, book := range event.Bookmakers {
		for _, market := range book.Markets {
			if !seen[market.Key] {
				seen[market.Key] = true
				keys = append(keys, market.Key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// get performs one guarded GET, decoding a 200 response into out.
func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.cfg.APIKey)
	params.Set("dateFormat", "iso")
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	return c.guard.Do(ctx, operation, func(ctx context.Context) error {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return &provider.Error{Provider: providerName, Message: fmt.Sprintf("create request: %v", err)}
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpc.Do(req)
		if err != nil {
			c.record(operation, "error", time.Since(start))
			return &provider.Error{Provider: providerName, Message: fmt.Sprintf("execute request: %v", err), Retryable: true}
		}
		defer resp.Body.Close()

		c.updateQuota(resp.Header)

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.record(operation, "error", time.Since(start))
			return &provider.Error{Provider: providerName, Message: fmt.Sprintf("read response: %v", err), Retryable: true}
		}

		c.record(operation, strconv.Itoa(resp.StatusCode), time.Since(start))

		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, body, resp.Header)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &provider.Error{Provider: providerName, StatusCode: resp.StatusCode, Message: fmt.Sprintf("parse response: %v", err)}
		}
		return nil
	})
}

func (c *Client) record(operation, status string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordProviderRequest(operation, status, elapsed)
	}
}

// updateQuota publishes the provider's quota headers.
func (c *Client) updateQuota(headers http.Header) {
	if c.metrics == nil {
		return
	}
	remaining, errR := strconv.ParseFloat(headers.Get("x-requests-remaining"), 64)
	used, errU := strconv.ParseFloat(headers.Get("x-requests-used"), 64)
	if errR == nil && errU == nil {
		c.metrics.SetProviderQuota(remaining, used)
	}
}

func statusError(status int, body []byte, headers http.Header) *provider.Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	e := &provider.Error{Provider: providerName, StatusCode: status, Message: msg}
	switch status {
	case http.StatusTooManyRequests:
		e.Retryable = true
		e.RetryAfter = parseRetryAfter(headers)
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		e.Retryable = true
	}
	return e
}

func parseRetryAfter(headers http.Header) time.Duration {
	value := headers.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
