package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/domain"
)

func TestNewDiscordSink_ValidatesURL(t *testing.T) {
	_, err := NewDiscordSink(config.DiscordSinkConfig{})
	assert.Error(t, err)

	_, err = NewDiscordSink(config.DiscordSinkConfig{WebhookURL: "https://example.com/hook"})
	assert.Error(t, err)

	sink, err := NewDiscordSink(config.DiscordSinkConfig{WebhookURL: "https://discord.com/api/webhooks/123/token"})
	require.NoError(t, err)
	assert.Equal(t, "discord", sink.Name())
}

func TestDiscordSink_Deliver(t *testing.T) {
	var captured discordWebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := &DiscordSink{
		cfg:    config.DiscordSinkConfig{WebhookURL: server.URL, Username: "linesentry"},
		client: server.Client(),
	}

	alert := testAlert()
	alert.HomeTeam = "Lakers"
	alert.AwayTeam = "Celtics"
	alert.MarketName = "Point Spread"
	alert.Fingerprint.PreviousConsensusLine = -3.0
	alert.Fingerprint.ConsensusLine = -4.5
	alert.Fingerprint.DeltaMagnitude = 1.5
	alert.Fingerprint.FirstMoverBook = "pinnacle"
	alert.Fingerprint.FirstMoverTier = domain.BookSharp
	alert.Fingerprint.ConfirmingBooks = 4
	alert.Fingerprint.Books = make([]domain.BookSnapshot, 6)

	require.NoError(t, sink.Deliver(context.Background(), alert))

	assert.Equal(t, "linesentry", captured.Username)
	require.Len(t, captured.Embeds, 1)
	embed := captured.Embeds[0]
	assert.Contains(t, embed.Title, "Sharp Activity: Celtics @ Lakers")
	assert.Equal(t, 0xFF0000, embed.Color)
	require.NotNil(t, embed.Footer)
	assert.Contains(t, embed.Footer.Text, alert.ID)

	fields := make(map[string]string, len(embed.Fields))
	for _, field := range embed.Fields {
		fields[field.Name] = field.Value
	}
	assert.Equal(t, "Point Spread", fields["Market"])
	assert.Equal(t, "-3.0 -> -4.5 (moved 1.5)", fields["Consensus"])
	assert.Equal(t, "pinnacle (sharp)", fields["First Mover"])
	assert.Equal(t, "4 of 6", fields["Confirming Books"])
	assert.Contains(t, fields["Confidence"], "85")
}

func TestDiscordSink_DeliverErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sink := &DiscordSink{cfg: config.DiscordSinkConfig{WebhookURL: server.URL}, client: server.Client()}
	err := sink.Deliver(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestEmbedColor(t *testing.T) {
	assert.Equal(t, 0xFF0000, embedColor(domain.PriorityUrgent))
	assert.Equal(t, 0xFF6600, embedColor(domain.PriorityHigh))
	assert.Equal(t, 0x0099FF, embedColor(domain.PriorityNormal))
}
