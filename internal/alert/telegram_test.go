package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/config"
)

func TestNewTelegramSink_Validation(t *testing.T) {
	_, err := NewTelegramSink(config.TelegramSinkConfig{})
	assert.Error(t, err, "token required")

	_, err = NewTelegramSink(config.TelegramSinkConfig{BotToken: "12345678:secret"})
	assert.Error(t, err, "chat id required")

	_, err = NewTelegramSink(config.TelegramSinkConfig{BotToken: "nocolon", ChatID: "-100123"})
	assert.Error(t, err, "token format")

	sink, err := NewTelegramSink(config.TelegramSinkConfig{BotToken: "12345678:AAEtoken", ChatID: "-100123"})
	require.NoError(t, err)
	assert.Equal(t, "telegram", sink.Name())
}

func TestTelegramSink_Deliver(t *testing.T) {
	var captured telegramMessage
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	sink, err := NewTelegramSink(config.TelegramSinkConfig{BotToken: "12345678:AAEtoken", ChatID: "-100123"})
	require.NoError(t, err)
	sink.baseURL = server.URL
	sink.client = server.Client()

	alert := testAlert()
	alert.HomeTeam = "Lakers"
	alert.AwayTeam = "Celtics"
	alert.Fingerprint.PreviousConsensusLine = -3.0
	alert.Fingerprint.ConsensusLine = -4.5
	alert.Fingerprint.DeltaMagnitude = 1.5
	require.NoError(t, sink.Deliver(context.Background(), alert))

	assert.Equal(t, "/bot12345678:AAEtoken/sendMessage", path)
	assert.Equal(t, "-100123", captured.ChatID)
	assert.Equal(t, "MarkdownV2", captured.ParseMode)
	assert.True(t, captured.DisableWebPagePreview)
	assert.Contains(t, captured.Text, "*Sharp Activity: Celtics @ Lakers*")
	assert.Contains(t, captured.Text, `Consensus: \-3\.0 \-\> \-4\.5 \(moved 1\.5\)`)
}

func TestTelegramSink_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer server.Close()

	sink, err := NewTelegramSink(config.TelegramSinkConfig{BotToken: "12345678:AAEtoken", ChatID: "-100123"})
	require.NoError(t, err)
	sink.baseURL = server.URL
	sink.client = server.Client()

	err = sink.Deliver(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `spreads \-3\.5 \(live\!\)`, escapeMarkdownV2("spreads -3.5 (live!)"))
}
