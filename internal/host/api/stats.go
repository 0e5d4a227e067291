package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/storage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rng := dashboard.DefaultRange
	if raw := r.URL.Query().Get("range"); raw != "" {
		parsed, err := dashboard.ParseRange(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rng = parsed
	}

	data, err := storage.LoadOrEmpty(r.Context(), s.source)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load accumulated data")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	summary := dashboard.Summarize(rng, dashboard.Filter(data, rng, s.config.Now()), s.config.ChartLimit)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	data, err := storage.LoadOrEmpty(r.Context(), s.source)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load accumulated data")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve data")
		return
	}

	writeJSON(w, http.StatusOK, data)
}

// handleWatch streams a "change" event carrying the whole map after every
// store write until the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)

	changes, err := s.source.Subscribe(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to subscribe to changes")
		writeError(w, http.StatusInternalServerError, "Failed to subscribe")
		return
	}

	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Lets the client know the subscription is live.
	if _, err := fmt.Fprint(w, ": subscribed\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		s.logger.Warn().Err(err).Msg("Watch stream cannot be flushed")
		return
	}

	s.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("Watch client connected")

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-changes:
			if !ok {
				return
			}
			encoded, err := storage.Encode(data)
			if err != nil {
				s.logger.Error().Err(err).Msg("Failed to encode change")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", encoded); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
