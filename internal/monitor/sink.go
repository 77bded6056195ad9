package monitor

import (
	"context"
	"fmt"

	"github.com/linesentry/core/internal/alert"
	"github.com/linesentry/core/internal/domain"
)

// StreamSink mirrors every dispatched alert onto the WebSocket stream.
type StreamSink struct {
	hub *Hub
}

var _ alert.Sink = (*StreamSink)(nil)

// NewStreamSink builds a sink over the hub.
func NewStreamSink(hub *Hub) *StreamSink {
	return &StreamSink{hub: hub}
}

// Name identifies the sink in dispatch logs and metrics.
func (s *StreamSink) Name() string { return "stream" }

// Deliver broadcasts the alert. A full stream buffer is a delivery
// failure so it lands in the sink failure counter.
func (s *StreamSink) Deliver(_ context.Context, a *domain.MarketAlert) error {
	if !s.hub.Broadcast(a) {
		return fmt.Errorf("stream buffer full")
	}
	return nil
}
