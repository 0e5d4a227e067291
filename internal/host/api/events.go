package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/goodtune/sitetime/internal/host"
	"github.com/goodtune/sitetime/internal/metrics"
)

// maxEventBody bounds the size of an event payload.
const maxEventBody = 64 << 10

// TabActivatedRequest reports that a tab became active in its window.
type TabActivatedRequest struct {
	TabID    *int `json:"tab_id"`
	WindowID int  `json:"window_id"`
}

// TabUpdatedRequest reports the latest state of a tab.
type TabUpdatedRequest struct {
	TabID    *int   `json:"tab_id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Active   bool   `json:"active"`
}

// TabRemovedRequest reports that a tab was closed.
type TabRemovedRequest struct {
	TabID *int `json:"tab_id"`
}

// WindowFocusRequest reports the focused window, -1 when none is.
type WindowFocusRequest struct {
	WindowID *int `json:"window_id"`
}

func (s *Server) handleTabActivated(w http.ResponseWriter, r *http.Request) {
	var req TabActivatedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TabID == nil {
		writeError(w, http.StatusBadRequest, "tab_id is required")
		return
	}
	metrics.HostEvents.WithLabelValues("tab_activated").Inc()

	s.tabs.Activate(*req.TabID, req.WindowID)

	s.dispatch(w, s.handler.OnTabFocusChanged(r.Context(), *req.TabID))
}

func (s *Server) handleTabUpdated(w http.ResponseWriter, r *http.Request) {
	var req TabUpdatedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TabID == nil {
		writeError(w, http.StatusBadRequest, "tab_id is required")
		return
	}
	metrics.HostEvents.WithLabelValues("tab_updated").Inc()

	tab := host.Tab{
		ID:       *req.TabID,
		WindowID: req.WindowID,
		URL:      req.URL,
		Status:   req.Status,
		Active:   req.Active,
	}
	s.tabs.Update(tab)

	s.dispatch(w, s.handler.OnTabUpdated(r.Context(), tab))
}

func (s *Server) handleTabRemoved(w http.ResponseWriter, r *http.Request) {
	var req TabRemovedRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TabID == nil {
		writeError(w, http.StatusBadRequest, "tab_id is required")
		return
	}
	metrics.HostEvents.WithLabelValues("tab_removed").Inc()

	if !s.tabs.Remove(*req.TabID) {
		writeError(w, http.StatusNotFound, "Tab not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWindowFocus(w http.ResponseWriter, r *http.Request) {
	var req WindowFocusRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.WindowID == nil {
		writeError(w, http.StatusBadRequest, "window_id is required")
		return
	}
	metrics.HostEvents.WithLabelValues("window_focus").Inc()

	s.tabs.FocusWindow(*req.WindowID)

	s.dispatch(w, s.handler.OnWindowFocusChanged(r.Context(), *req.WindowID))
}

func (s *Server) handleSuspend(w http.ResponseWriter, r *http.Request) {
	metrics.HostEvents.WithLabelValues("suspend").Inc()

	s.handler.OnProcessSuspending(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxEventBody))
	if err := dec.Decode(v); err != nil {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Malformed event body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// dispatch maps the tracker's result onto the response.
func (s *Server) dispatch(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, host.ErrTabNotFound):
		writeError(w, http.StatusNotFound, "Tab not found")
	default:
		s.logger.Error().Err(err).Msg("Failed to handle host event")
		writeError(w, http.StatusInternalServerError, "Failed to handle event")
	}
}
