package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/internal/assistant"
	"github.com/slotwise/slotwise/internal/core"
)

// handleCommand runs one natural-language request through the assistant
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req assistant.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	// Now is pinned by tests only; API callers always get wall-clock time
	req.Now = time.Time{}

	resp, err := s.assistant.Handle(r.Context(), req)
	s.metrics.ObserveCommand(resp.Action)
	if err != nil {
		s.respondJSON(w, http.StatusBadGateway, resp)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleEvents lists upcoming events via a find command
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	text := "show my meetings"
	if p := r.URL.Query().Get("participant"); p != "" {
		text = "show my meetings with " + p
	}

	resp, err := s.assistant.Handle(r.Context(), assistant.Request{Text: text})
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "calendar backend unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": orEmptyEvents(resp.Action.Events),
	})
}

// handleAvailability reports free slots for a day ("today", "tomorrow",
// a weekday, or an ISO date)
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = "today"
	}

	resp, err := s.assistant.Handle(r.Context(), assistant.Request{Text: "when am I free " + day})
	if err != nil {
		s.respondError(w, http.StatusBadGateway, "calendar backend unavailable")
		return
	}
	if resp.Action.Kind == core.ActionFailed {
		s.respondError(w, http.StatusBadRequest, resp.Action.Message)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"free": orEmptyWindows(resp.Action.Free),
	})
}

// handlePreferences exposes the learned profile
func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	profile := s.prefs.Profile()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"empty":           profile.Empty(),
		"event_count":     profile.EventCount,
		"built_at":        profile.BuiltAt,
		"mean_duration":   profile.MeanDuration.String(),
		"preferred_hours": profile.PreferredHours(),
		"contacts":        profile.FrequentContacts(5),
	})
}

// handleRebuild relearns the profile from history on demand
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := s.prefs.Rebuild(ctx); err != nil {
		s.respondError(w, http.StatusInternalServerError, "rebuild failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// handleJobs reports background job state
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": []interface{}{}})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats": s.runner.GetStats(),
		"jobs":  s.runner.Jobs(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orEmptyEvents(events []core.Event) []core.Event {
	if events == nil {
		return []core.Event{}
	}
	return events
}

func orEmptyWindows(windows []core.Window) []core.Window {
	if windows == nil {
		return []core.Window{}
	}
	return windows
}
