package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/area-fans/internal/configflow"
)

// decodeInput reads a step submission: an object mapping field keys to the
// selected values. An empty body submits no selections.
func decodeInput(r *http.Request) (configflow.Input, error) {
	input := configflow.Input{}
	if r.ContentLength == 0 {
		return input, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if input == nil {
		input = configflow.Input{}
	}
	return input, nil
}

// entryRemoved is broadcast on ChannelEntryUpdated when an entry is deleted.
type entryRemoved struct {
	EntryID string `json:"entry_id"`
	Removed bool   `json:"removed"`
}

// writeResult writes a step result and announces saved entries. An abort
// is a conflict.
func (s *Server) writeResult(w http.ResponseWriter, res *configflow.Result) {
	switch res.Type {
	case configflow.ResultAbort:
		writeJSON(w, http.StatusConflict, res)
	case configflow.ResultCreateEntry:
		s.hub.Broadcast(ChannelEntryUpdated, res.Entry)
		writeJSON(w, http.StatusCreated, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleFlowForm(w http.ResponseWriter, r *http.Request) {
	res, err := s.flow.StepUser(r.Context(), nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleFlowSubmit(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := s.flow.StepUser(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.flow.Entries(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nonNilSlice(entries), "count": len(entries)})
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.flow.RemoveEntry(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.hub.Broadcast(ChannelEntryUpdated, entryRemoved{EntryID: id, Removed: true})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOptionsForm(w http.ResponseWriter, r *http.Request) {
	res, err := s.flow.StepInit(r.Context(), chi.URLParam(r, "id"), nil)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleOptionsSubmit(w http.ResponseWriter, r *http.Request) {
	input, err := decodeInput(r)
	if err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	res, err := s.flow.StepInit(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.flow.Reload(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}
