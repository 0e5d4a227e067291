package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	TrackedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_tracked_seconds_total",
			Help: "Seconds of focused time recorded per domain",
		},
		[]string{"domain"},
	)

	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitetime_sessions_started_total",
			Help: "Total tracking sessions started",
		},
	)

	SessionsDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitetime_sessions_discarded_total",
			Help: "Sessions ended with zero or negative elapsed time",
		},
	)

	SkippedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_skipped_events_total",
			Help: "Focus events that did not start a session",
		},
		[]string{"reason"},
	)

	// Storage metrics
	StoreWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_store_writes_total",
			Help: "Writes of the accumulated map to storage",
		},
		[]string{"result"},
	)

	ChangesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_change_notifications_dropped_total",
			Help: "Store change notifications that could not be delivered",
		},
		[]string{"reason"},
	)

	// Host bridge metrics
	HostEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_host_events_total",
			Help: "Host events received by the bridge API",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		TrackedSeconds,
		SessionsStarted,
		SessionsDiscarded,
		SkippedEvents,
		StoreWrites,
		ChangesDropped,
		HostEvents,
	)
}

// Server exposes the registered collectors at /metrics and a liveness
// check at /health.
type Server struct {
	addr     string
	server   *http.Server
	listener net.Listener
	logger   zerolog.Logger
}

func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		addr: addr,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener serves on ln instead of listening on the configured address.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start binds the listener, so a busy port is reported here, then serves in
// the background.
func (s *Server) Start() error {
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		s.listener = ln
	}

	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting metrics server")
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
