package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/linesentry/core/internal/cache"
	"github.com/linesentry/core/internal/config"
	"github.com/linesentry/core/internal/metrics"
	"github.com/linesentry/core/internal/provider"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the operational endpoints over HTTP: /health, /ready,
// /metrics, /status, and the /ws/alerts stream.
type Server struct {
	router  *mux.Router
	server  *http.Server
	hub     *Hub
	cache   *cache.Service
	store   Pinger
	guard   *provider.Guard
	metrics *metrics.Registry
	started time.Time

	upgrader websocket.Upgrader
}

// NewServer wires the endpoint handlers. store and guard may be nil
// when the process runs without persistence or without a provider.
func NewServer(cfg config.MonitorConfig, hub *Hub, cacheSvc *cache.Service, store Pinger, guard *provider.Guard, m *metrics.Registry) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		hub:     hub,
		cache:   cacheSvc,
		store:   store,
		guard:   guard,
		metrics: m,
		started: time.Now().UTC(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The stream is read-only operational data; origin checks
			// add nothing a network boundary does not already provide.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.routes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// routes registers the stream on the bare router and everything else
// behind the logging middleware. The wrapped response writer breaks
// WebSocket hijacking, so the stream must stay outside it.
func (s *Server) routes() {
	s.router.HandleFunc("/ws/alerts", s.handleStream)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().
		Str("component", "monitor").
		Str("addr", s.server.Addr).
		Msg("monitor server started")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("component", "monitor").Msg("monitor server stopping")
	return s.server.Shutdown(ctx)
}

// Router returns the handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyResponse struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// handleReady checks the backing services the pipeline depends on.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := make(map[string]string)
	if err := s.cache.Ping(ctx); err != nil {
		failures["cache"] = err.Error()
	}
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			failures["store"] = err.Error()
		}
	}

	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Failures: failures})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

type statusResponse struct {
	Status        string               `json:"status"`
	Uptime        string               `json:"uptime"`
	Provider      provider.GuardStatus `json:"provider"`
	StreamClients int                  `json:"stream_clients"`
	Timestamp     time.Time            `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		StreamClients: s.hub.ClientCount(),
		Timestamp:     time.Now().UTC(),
	}
	if s.guard != nil {
		resp.Provider = s.guard.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStream upgrades the connection and runs the read pump in the
// request goroutine; the write pump runs alongside until the hub or
// the peer closes the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "monitor").
			Str("remote", r.RemoteAddr).
			Msg("stream upgrade failed")
		return
	}

	client := newStreamClient(uuid.NewString()[:8], conn, s.hub)
	s.hub.Register(client)
	go client.writePump()
	client.readPump()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Debug().
			Str("component", "monitor").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request served")
	})
}

// responseWrapper captures the status code for request logs.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Str("component", "monitor").Msg("response encode failed")
	}
}
