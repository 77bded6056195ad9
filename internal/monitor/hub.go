// Package monitor exposes the operational surface: liveness and
// readiness probes, Prometheus metrics, a status snapshot, and a
// WebSocket stream that mirrors every dispatched alert.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/domain"
	"github.com/linesentry/core/internal/metrics"
)

// streamMessage is the envelope pushed to stream subscribers.
type streamMessage struct {
	Type      string              `json:"type"`
	Alert     *domain.MarketAlert `json:"alert,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

const messageTypeAlert = "alert"

// Hub tracks connected stream clients and fans dispatched alerts out
// to them. Registration and broadcast flow through channels so the
// client set is only mutated from the Run loop.
type Hub struct {
	clients   map[*streamClient]bool
	clientsMu sync.RWMutex

	broadcast  chan streamMessage
	register   chan *streamClient
	unregister chan *streamClient

	metrics *metrics.Registry
}

// NewHub builds an empty hub.
func NewHub(m *metrics.Registry) *Hub {
	return &Hub{
		clients:    make(map[*streamClient]bool),
		broadcast:  make(chan streamMessage, 256),
		register:   make(chan *streamClient),
		unregister: make(chan *streamClient),
		metrics:    m,
	}
}

// Run services the hub until the context is cancelled, then closes
// every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Broadcast enqueues an alert for every connected client. The hub
// never blocks the dispatch path: when the buffer is full the message
// is dropped and counted against the stream sink.
func (h *Hub) Broadcast(alert *domain.MarketAlert) bool {
	msg := streamMessage{Type: messageTypeAlert, Alert: alert, Timestamp: time.Now().UTC()}
	select {
	case h.broadcast <- msg:
		return true
	default:
		log.Warn().
			Str("component", "monitor").
			Str("alert_id", alert.ID).
			Msg("stream buffer full, alert dropped")
		return false
	}
}

// Register hands a new client to the Run loop.
func (h *Hub) Register(c *streamClient) {
	h.register <- c
}

// Unregister removes a client; safe to call multiple times.
func (h *Hub) Unregister(c *streamClient) {
	h.unregister <- c
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *streamClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	h.metrics.StreamClients.Set(float64(len(h.clients)))
	log.Info().
		Str("component", "monitor").
		Str("client_id", c.id).
		Int("clients", len(h.clients)).
		Msg("stream client connected")
}

func (h *Hub) unregisterClient(c *streamClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.StreamClients.Set(float64(len(h.clients)))
	log.Info().
		Str("component", "monitor").
		Str("client_id", c.id).
		Int("clients", len(h.clients)).
		Msg("stream client disconnected")
}

// fanOut delivers one message to every client without blocking. A
// client whose buffer is full is too slow to keep the stream live and
// gets disconnected.
func (h *Hub) fanOut(msg streamMessage) {
	h.clientsMu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if c.trySend(msg) {
			continue
		}
		log.Warn().
			Str("component", "monitor").
			Str("client_id", c.id).
			Msg("stream client too slow, disconnecting")
		go h.Unregister(c)
	}
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.StreamClients.Set(0)
	log.Info().Str("component", "monitor").Msg("stream hub stopped")
}
