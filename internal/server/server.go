// Package server exposes rendition listing and control over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agleyzer/renditionctl/internal/events"
	"github.com/agleyzer/renditionctl/internal/manifest"
	"github.com/agleyzer/renditionctl/internal/rendition"
	"github.com/agleyzer/renditionctl/internal/variant"
)

// Renditions lists and looks up representations.
type Renditions interface {
	List() []rendition.Representation
	Get(id string) (rendition.Representation, bool)
}

// Session reports the playback state.
type Session interface {
	Manifest() *manifest.Manifest
	Current() *variant.Variant
	Switches() int
}

// ClusterStatus reports the replication state of this node.
type ClusterStatus interface {
	NodeID() string
	State() string
	LeaderAddr() string
}

const recentEventsSize = 32

// Server serves the rendition control surface
type Server struct {
	renditions Renditions
	session    Session
	cluster    ClusterStatus
	port       int
	logger     *slog.Logger
	httpServer *http.Server

	mu     sync.Mutex
	recent []events.Event
}

// Option configures a Server.
type Option func(*Server)

// WithCluster includes cluster state in health responses.
func WithCluster(c ClusterStatus) Option {
	return func(s *Server) {
		s.cluster = c
	}
}

// WithEvents records rendition events from bus for the /events endpoint.
func WithEvents(bus *events.Bus) Option {
	return func(s *Server) {
		bus.Subscribe(events.RenditionEnabled, s.recordEvent)
		bus.Subscribe(events.RenditionDisabled, s.recordEvent)
	}
}

// New creates a new HTTP server
func New(renditions Renditions, session Session, port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		renditions: renditions,
		session:    session,
		port:       port,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Register handlers
	mux.HandleFunc("GET /renditions", s.handleList)
	mux.HandleFunc("GET /renditions/{id...}", s.handleGet)
	mux.HandleFunc("PUT /renditions/{id...}", s.handleSetEnabled)
	mux.HandleFunc("GET /master.m3u8", s.handleMaster)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	// Start server in a goroutine
	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// renditionResponse is the JSON form of a representation.
type renditionResponse struct {
	ID        string   `json:"id"`
	Width     *int     `json:"width,omitempty"`
	Height    *int     `json:"height,omitempty"`
	Bandwidth *int     `json:"bandwidth,omitempty"`
	FrameRate *float64 `json:"frameRate,omitempty"`
	Codecs    string   `json:"codecs"`
	URI       string   `json:"uri"`
	Enabled   bool     `json:"enabled"`
}

func newRenditionResponse(rep rendition.Representation) renditionResponse {
	return renditionResponse{
		ID:        rep.ID,
		Width:     rep.Width,
		Height:    rep.Height,
		Bandwidth: rep.Bandwidth,
		FrameRate: rep.FrameRate,
		Codecs:    rep.Codecs,
		URI:       rep.Playlist.URI,
		Enabled:   rep.Enabled(),
	}
}

// handleList serves all selectable renditions
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	reps := s.renditions.List()

	resp := make([]renditionResponse, 0, len(reps))
	for _, rep := range reps {
		resp = append(resp, newRenditionResponse(rep))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGet serves a single rendition, compatible or not
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.renditions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "rendition not found")
		return
	}

	writeJSON(w, http.StatusOK, newRenditionResponse(rep))
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetEnabled enables or disables a rendition
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "missing \"enabled\" field")
		return
	}

	rep, ok := s.renditions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "rendition not found")
		return
	}

	rep.SetEnabled(*req.Enabled)

	writeJSON(w, http.StatusOK, newRenditionResponse(rep))
}

// handleEvents serves the most recent rendition events, oldest first
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	recent := make([]events.Event, len(s.recent))
	copy(recent, s.recent)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) recordEvent(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, e)
	if len(s.recent) > recentEventsSize {
		s.recent = s.recent[len(s.recent)-recentEventsSize:]
	}
}

// handleHealth serves health check information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"switches":   s.session.Switches(),
		"renditions": len(s.renditions.List()),
	}

	if m := s.session.Manifest(); m != nil {
		stats["manifest"] = m.URI
	}
	if current := s.session.Current(); current != nil {
		stats["current"] = current.ID
	}

	health := map[string]any{
		"status": "ok",
		"stats":  stats,
	}

	if s.cluster != nil {
		health["cluster"] = map[string]any{
			"node_id": s.cluster.NodeID(),
			"state":   s.cluster.State(),
			"leader":  s.cluster.LeaderAddr(),
		}
	}

	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", duration,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
