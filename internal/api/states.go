package api

import (
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/area-fans/internal/state"
)

func (s *Server) handleListStates(w http.ResponseWriter, _ *http.Request) {
	states := s.states.All()
	sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })
	writeJSON(w, http.StatusOK, map[string]any{"states": nonNilSlice(states), "count": len(states)})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	st, ok := s.states.Get(entityID)
	if !ok {
		writeNotFound(w, "no state reported for "+entityID)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetState records a state report, accepting the same payloads as
// the MQTT state topic: a bare value or {"state": ..., "attributes": ...}.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body")
		return
	}
	value, attrs, err := state.ParsePayload(body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	changed := s.states.Set(entityID, value, attrs)
	st, _ := s.states.Get(entityID)
	writeJSON(w, http.StatusOK, map[string]any{"state": st, "changed": changed})
}
