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

const telegramAPIBase = "https://api.telegram.org"

// markdownV2Escaper escapes every character Telegram's MarkdownV2
// parse mode treats as syntax.
var markdownV2Escaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// TelegramSink sends alerts through the Telegram bot API.
type TelegramSink struct {
	cfg     config.TelegramSinkConfig
	client  *http.Client
	baseURL string
}

// NewTelegramSink validates the bot credentials and builds the sink.
func NewTelegramSink(cfg config.TelegramSinkConfig) (*TelegramSink, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram chat ID is required")
	}
	parts := strings.Split(cfg.BotToken, ":")
	if len(parts) != 2 || len(parts[0]) < 8 {
		return nil, fmt.Errorf("invalid telegram bot token format")
	}
	return &TelegramSink{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: telegramAPIBase,
	}, nil
}

// Name identifies the sink in logs and metrics.
func (s *TelegramSink) Name() string {
	return "telegram"
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Deliver sends one alert as a MarkdownV2 message.
func (s *TelegramSink) Deliver(ctx context.Context, alert *domain.MarketAlert) error {
	payload := telegramMessage{
		ChatID:                s.cfg.ChatID,
		Text:                  s.formatMessage(alert),
		ParseMode:             "MarkdownV2",
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !tgResp.OK {
		desc := tgResp.Description
		if desc == "" {
			desc = "unknown error"
		}
		return fmt.Errorf("telegram API error: %s", desc)
	}
	return nil
}

// formatMessage renders the alert as MarkdownV2 text: a bold headline,
// then plain detail lines escaped as one block.
func (s *TelegramSink) formatMessage(alert *domain.MarketAlert) string {
	fp := alert.Fingerprint

	lines := []string{
		fmt.Sprintf("Market: %s", marketLabel(alert)),
		fmt.Sprintf("Consensus: %s", movementText(fp)),
	}
	if fp.FirstMoverBook != "" {
		lines = append(lines, fmt.Sprintf("First mover: %s (%s)", fp.FirstMoverBook, fp.FirstMoverTier))
	}
	lines = append(lines, fmt.Sprintf("Confidence: %.0f (%s)", alert.Score.Total, alert.Score.Level))
	if alert.Score.Explanation != "" {
		lines = append(lines, alert.Score.Explanation)
	}
	if !alert.CommenceTime.IsZero() {
		lines = append(lines, fmt.Sprintf("Kickoff: %s", kickoffText(alert)))
	}

	header := fmt.Sprintf("%s *%s*\n\n", priorityMarker(alert.Priority), escapeMarkdownV2(alertHeadline(alert)))
	return header + escapeMarkdownV2(strings.Join(lines, "\n"))
}

func escapeMarkdownV2(text string) string {
	return markdownV2Escaper.Replace(text)
}
