// Package api is the host bridge: browser-side code posts tab and window
// events here, and local tools read statistics and watch for changes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goodtune/sitetime/internal/host"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/tracker"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the bridge server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	ChartLimit     int
	Now            func() time.Time
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// Server represents the bridge HTTP server.
type Server struct {
	config   Config
	tabs     *host.Registry
	handler  tracker.EventHandler
	source   storage.Source
	server   *http.Server
	router   *mux.Router
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new bridge server. Events update tabs before they are
// handed to handler; reads are served from source.
func NewServer(cfg Config, tabs *host.Registry, handler tracker.EventHandler, source storage.Source, logger zerolog.Logger) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	router := mux.NewRouter()

	s := &Server{
		config:  cfg,
		tabs:    tabs,
		handler: handler,
		source:  source,
		router:  router,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	// No WriteTimeout: the watch stream stays open.
	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	// Preflight requests only need routing when CORS is enabled.
	eventMethods := []string{"POST"}
	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
		eventMethods = append(eventMethods, "OPTIONS")
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	events := s.router.PathPrefix("/api/events").Subrouter()
	events.HandleFunc("/tab-activated", s.handleTabActivated).Methods(eventMethods...)
	events.HandleFunc("/tab-updated", s.handleTabUpdated).Methods(eventMethods...)
	events.HandleFunc("/tab-removed", s.handleTabRemoved).Methods(eventMethods...)
	events.HandleFunc("/window-focus", s.handleWindowFocus).Methods(eventMethods...)
	events.HandleFunc("/suspend", s.handleSuspend).Methods(eventMethods...)

	s.router.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/api/data", s.handleData).Methods("GET")
	s.router.HandleFunc("/api/data/watch", s.handleWatch).Methods("GET")
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the bridge server.
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
		}
		s.listener = ln
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting bridge API server")

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Bridge API server error")
		}
	}()

	return nil
}

// Addr returns the address the server listens on once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.ListenAddr
}

// Stop gracefully stops the bridge server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping bridge API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		// Watch streams do not end on their own.
		_ = s.server.Close()
		return fmt.Errorf("bridge api shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
