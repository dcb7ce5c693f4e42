package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/area-fans/internal/registry"
)

// createAreaRequest is the body of POST /areas. An empty ID is generated.
type createAreaRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createDeviceRequest is the body of POST /devices. An empty ID is generated.
type createDeviceRequest struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	AreaID       *string `json:"area_id"`
	Manufacturer *string `json:"manufacturer"`
	Model        *string `json:"model"`
}

// ─── Areas ─────────────────────────────────────────────────────────

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.registry.ListAreas(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": nonNilSlice(areas), "count": len(areas)})
}

func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	area, err := s.registry.GetArea(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var req createAreaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	area := &registry.Area{ID: req.ID, Name: req.Name}
	if err := s.registry.CreateArea(r.Context(), area); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, area)
}

func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteArea(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Devices ───────────────────────────────────────────────────────

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": nonNilSlice(devices), "count": len(devices)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	device := &registry.Device{
		ID:           req.ID,
		Name:         req.Name,
		AreaID:       req.AreaID,
		Manufacturer: req.Manufacturer,
		Model:        req.Model,
	}
	if err := s.registry.CreateDevice(r.Context(), device); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteDevice(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Entities ──────────────────────────────────────────────────────

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := s.registry.ListEntities(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if domain := r.URL.Query().Get("domain"); domain != "" {
		filtered := entities[:0]
		for _, e := range entities {
			if e.Domain() == domain {
				filtered = append(filtered, e)
			}
		}
		entities = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": nonNilSlice(entities), "count": len(entities)})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := s.registry.GetEntity(r.Context(), chi.URLParam(r, "entity_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleRegisterEntity(w http.ResponseWriter, r *http.Request) {
	var entity registry.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.registry.RegisterEntity(r.Context(), &entity); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entity)
}

func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveEntity(r.Context(), chi.URLParam(r, "entity_id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNilSlice makes empty lists encode as [] rather than null.
func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
