package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/tabpulse/internal/engine"
	"github.com/lazypower/tabpulse/internal/model"
	"github.com/lazypower/tabpulse/internal/store"
)

const defaultSnapshotCount = 100

// TabsResponse is the body of GET /api/tabs.
type TabsResponse struct {
	Tabs               []model.Snapshot `json:"tabs"`
	TotalMemoryUsageMB float64          `json:"totalMemoryUsageMB"`
	TabCount           int              `json:"tabCount"`
	LastTick           *time.Time       `json:"lastTick,omitempty"`
}

// currentSnapshots returns the latest snapshots, resampling first when the
// request asks for it. A failed resample is logged and the previous pass
// is served.
func (s *Server) currentSnapshots(r *http.Request) []model.Snapshot {
	if r.URL.Query().Get("refresh") != "true" {
		return s.engine.Snapshots()
	}
	snaps, err := s.engine.Refresh(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("refresh")
	}
	return snaps
}

func (s *Server) handleGetTabs(w http.ResponseWriter, r *http.Request) {
	snaps := s.currentSnapshots(r)
	if s.engine.Store.Settings(r.Context()).ShowHealthScores {
		snaps = s.engine.ScoredSnapshots(snaps)
	}

	resp := TabsResponse{Tabs: snaps, TabCount: len(snaps)}
	for _, t := range snaps {
		resp.TotalMemoryUsageMB += t.MemoryUsageMB
	}
	if t := s.engine.LastTick(); !t.IsZero() {
		resp.LastTick = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSyncTabs(w http.ResponseWriter, r *http.Request) {
	var tabs []model.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&tabs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	removed := s.tabs.Replace(tabs)
	for _, id := range removed {
		s.engine.TabRemoved(id)
	}
	if removed == nil {
		removed = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tabs":    s.tabs.Len(),
		"removed": removed,
	})
}

func (s *Server) handleTabEvent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	var d model.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch kind {
	case "created", "updated":
		if s.tabs.Upsert(d) {
			s.engine.TabCreated(d)
		}

	case "activated":
		// The agent may send only the id; fall back to what the registry knows.
		if d.URL == "" {
			if known, ok := s.tabs.Get(d.ID); ok {
				known.Active = true
				d = known
			}
		}
		s.tabs.Upsert(d)
		active, _ := s.tabs.Activate(d.ID, time.Now())
		if err := s.engine.TabActivated(r.Context(), active); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

	case "removed":
		s.tabs.Remove(d.ID)
		s.engine.TabRemoved(d.ID)

	default:
		writeError(w, http.StatusNotFound, "unknown event "+kind)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok", "event": kind, "tabId": d.ID})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	preds := s.engine.Predictions(r.Context(), s.currentSnapshots(r))
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

func (s *Server) handleRefreshPredictions(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RefreshPredictions(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cached": s.engine.Predictor.CacheLen()})
}

// ImportResponse is the body of POST /api/patterns/import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Cached   int `json:"cached"`
}

func (s *Server) handleImportPatterns(w http.ResponseWriter, r *http.Request) {
	var patterns []model.UsagePattern
	if err := json.NewDecoder(r.Body).Decode(&patterns); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.engine.ImportPatterns(r.Context(), patterns); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		Imported: len(patterns),
		Cached:   s.engine.Predictor.CacheLen(),
	})
}

func (s *Server) handleDomains(w http.ResponseWriter, r *http.Request) {
	groups := s.engine.DomainGroups(s.currentSnapshots(r))
	if groups == nil {
		groups = []model.DomainGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": groups})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	top := queryInt(r, "top", engine.DefaultTopConsumers)
	idle := queryInt(r, "idle", engine.DefaultIdleMinutes)
	writeJSON(w, http.StatusOK, s.engine.Insights(s.currentSnapshots(r), top, idle))
}

func (s *Server) handleLeaks(w http.ResponseWriter, r *http.Request) {
	leaks := s.engine.ActiveLeaks(r.Context())
	if leaks == nil {
		leaks = []model.Leak{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaks": leaks})
}

func (s *Server) handleDismissLeak(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	removed, err := s.engine.DismissLeak(r.Context(), tabID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "no leak recorded for tab")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", defaultSnapshotCount)
	snaps := s.engine.Store.RecentSnapshots(r.Context(), count)
	if snaps == nil {
		snaps = []model.MemorySnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.engine.QuickActions(r.Context())})
}

// handlePlanAction resolves a stock action by id, or a custom action given
// inline, against the current snapshots.
func (s *Server) handlePlanAction(w http.ResponseWriter, r *http.Request) {
	var req model.QuickAction
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	action, ok := s.resolveAction(r, req)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.PlanAction(action, s.currentSnapshots(r)))
}

func (s *Server) resolveAction(r *http.Request, req model.QuickAction) (model.QuickAction, bool) {
	if req.Action == "" {
		for _, a := range s.engine.QuickActions(r.Context()) {
			if a.ID == req.ID {
				return a, true
			}
		}
		return req, false
	}
	switch req.Action {
	case model.ActionHibernate, model.ActionClose, model.ActionGroup:
		return req, true
	}
	return req, false
}

func (s *Server) handleActionCompleted(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  model.ActionKind `json:"action"`
		Count   int              `json:"count"`
		FreedMB float64          `json:"freedMB"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Action == model.ActionHibernate && req.Count > 0 {
		s.engine.ReportHibernated(r.Context(), req.Count, req.FreedMB)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store.Settings(r.Context()))
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	settings, err := s.engine.Store.UpdateSettings(r.Context(), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.engine.Store.ListSessions(r.Context())
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	var req model.Session
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	sess, err := s.engine.Store.SaveSession(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var req model.Session
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.ID = chi.URLParam(r, "id")

	err := s.engine.Store.UpdateSession(r.Context(), req)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.Store.DeleteSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
