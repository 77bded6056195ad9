package alert

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()

	sink := NewLogSink()
	assert.Equal(t, "log", sink.Name())
	require.NoError(t, sink.Deliver(context.Background(), testAlert()))

	line := buf.String()
	assert.Contains(t, line, `"alert_id":"a1"`)
	assert.Contains(t, line, `"type":"sharp_activity"`)
	assert.Contains(t, line, `"market":"spreads"`)
	assert.Contains(t, line, "Sharp Activity")
}
