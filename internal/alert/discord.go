package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
)

// DiscordSink posts alerts to a channel webhook as rich embeds.
type DiscordSink struct {
	cfg    config.DiscordSinkConfig
	client *http.Client
}

// NewDiscordSink validates the webhook URL and builds the sink.
func NewDiscordSink(cfg config.DiscordSinkConfig) (*DiscordSink, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("discord webhook URL is required")
	}
	if !strings.HasPrefix(cfg.WebhookURL, "https://discord.com/api/webhooks/") &&
		!strings.HasPrefix(cfg.WebhookURL, "https://discordapp.com/api/webhooks/") {
		return nil, fmt.Errorf("invalid discord webhook URL format")
	}
	return &DiscordSink{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *DiscordSink) Name() string {
	return "discord"
}

type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title     string              `json:"title,omitempty"`
	Color     int                 `json:"color,omitempty"`
	Fields    []discordEmbedField `json:"fields,omitempty"`
	Footer    *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// Deliver posts one alert to the webhook.
func (s *DiscordSink) Deliver(ctx context.Context, alert *domain.MarketAlert) error {
	payload := discordWebhookPayload{
		Username: s.cfg.Username,
		Embeds:   []discordEmbed{s.buildEmbed(alert)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildEmbed renders the alert as a Discord embed.
func (s *DiscordSink) buildEmbed(alert *domain.MarketAlert) discordEmbed {
	fp := alert.Fingerprint

	fields := []discordEmbedField{
		{Name: "Market", Value: marketLabel(alert), Inline: true},
		{Name: "Consensus", Value: movementText(fp), Inline: true},
		{Name: "Kickoff", Value: kickoffText(alert), Inline: true},
	}
	if fp.FirstMoverBook != "" {
		fields = append(fields, discordEmbedField{
			Name:   "First Mover",
			Value:  fmt.Sprintf("%s (%s)", fp.FirstMoverBook, fp.FirstMoverTier),
			Inline: true,
		})
	}
	if fp.ConfirmingBooks > 0 {
		fields = append(fields, discordEmbedField{
			Name:   "Confirming Books",
			Value:  fmt.Sprintf("%d of %d", fp.ConfirmingBooks, len(fp.Books)),
			Inline: true,
		})
	}
	fields = append(fields, discordEmbedField{
		Name:   "Confidence",
		Value:  fmt.Sprintf("**%.0f** (%s)\n%s", alert.Score.Total, alert.Score.Level, alert.Score.Explanation),
		Inline: false,
	})

	return discordEmbed{
		Title:     fmt.Sprintf("%s %s", priorityMarker(alert.Priority), alertHeadline(alert)),
		Color:     embedColor(alert.Priority),
		Fields:    fields,
		Footer:    &discordEmbedFooter{Text: fmt.Sprintf("linesentry | %s", alert.ID)},
		Timestamp: alert.CreatedAt.Format(time.RFC3339),
	}
}

// embedColor maps priority to the embed accent color.
func embedColor(priority domain.AlertPriority) int {
	switch priority {
	case domain.PriorityUrgent:
		return 0xFF0000 // Red
	case domain.PriorityHigh:
		return 0xFF6600 // Orange
	default:
		return 0x0099FF // Blue
	}
}
