package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/statuswatch/statuswatch/internal/bus"
	"github.com/statuswatch/statuswatch/internal/status"
	"github.com/statuswatch/statuswatch/internal/store"
)

// sseWriteTimeout is the maximum time allowed for a single SSE write.
// This prevents goroutine leaks when clients are slow or disconnected.
// Must be <= shutdown timeout to ensure clean shutdown.
const sseWriteTimeout = 5 * time.Second

// Server handles HTTP requests for the statuswatch API.
//
// Endpoints:
//   - GET /: service identity and counters
//   - GET /api/status: all provider summaries as JSON
//   - GET /api/incidents: active incidents across providers
//   - GET /api/events: Server-Sent Events stream of status events
//   - GET /metrics: Prometheus metrics
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	bus        *bus.Bus
	port       int
	providers  int
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server]. providers is the number of
// configured providers, reported on the root endpoint.
func NewServer(st store.Store, b *bus.Bus, port, providers int, logger *slog.Logger) *Server {
	return &Server{
		store:     st,
		bus:       b,
		port:      port,
		providers: providers,
		logger:    logger,
	}
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the
// server is listening. The server runs until ctx is cancelled, then
// shuts down gracefully with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/incidents", s.handleIncidents)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.Handle("/metrics", promhttp.Handler())

	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler: mux,
		// BaseContext derives all request contexts from the server
		// context, so cancelling ctx also ends long-running handlers
		// like the SSE stream.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleRoot reports service identity and live counters.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.writeJSON(w, map[string]any{
		"service":     "statuswatch",
		"providers":   s.providers,
		"subscribers": s.bus.SubscriberCount(),
	})
}

// handleStatus returns all provider summaries as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.store.GetAll())
}

// providerIncident tags an incident with the provider it belongs to
// for the cross-provider incident listing.
type providerIncident struct {
	Provider string `json:"provider"`
	status.Incident
}

// handleIncidents returns the active incidents of every provider.
func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out := make([]providerIncident, 0)
	for _, summary := range s.store.GetAll() {
		for _, inc := range summary.ActiveIncidents {
			out = append(out, providerIncident{
				Provider: summary.Provider,
				Incident: inc,
			})
		}
	}
	s.writeJSON(w, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleEvents streams status events via Server-Sent Events.
//
// The handler is the gateway for one observer: it subscribes to the
// bus on connect, drains its own bounded queue into the response, and
// unsubscribes on any exit path, so a disconnected client never leaves
// a subscriber accumulating drops. Write deadlines keep a slow or dead
// client from blocking the handler past shutdown.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// ResponseController provides deadline-aware write and flush
	// operations (Go 1.20+).
	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeEvent := func(name, id string, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if name != "" {
			if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
				return err
			}
		}
		if id != "" {
			if _, err := fmt.Fprintf(w, "id: %s\n", id); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub.ID)

	// replay the current state first so a fresh client does not wait
	// for the next change to see anything
	for _, summary := range s.store.GetAll() {
		data, err := json.Marshal(summary)
		if err != nil {
			continue
		}
		if err := writeEvent("summary", "", data); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := writeEvent(string(ev.Kind), ev.ID, data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from the server context via
			// BaseContext, so this fires on both client disconnect
			// AND server shutdown
			return
		}
	}
}
