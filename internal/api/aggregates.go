package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListAggregates(w http.ResponseWriter, r *http.Request) {
	snaps := s.aggregates.List()
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := snaps[:0]
		for _, snap := range snaps {
			if string(snap.Kind) == kind {
				filtered = append(filtered, snap)
			}
		}
		snaps = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"aggregates": snaps, "count": len(snaps)})
}

func (s *Server) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregates.Get(chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleTurnOn runs the switch command. Member failures do not fail the
// request; the returned snapshot shows what actually changed.
func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregates.TurnOn(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	snap, err := s.aggregates.TurnOff(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
