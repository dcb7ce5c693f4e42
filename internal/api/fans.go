package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/area-fans/internal/configflow"
	"github.com/nerrad567/area-fans/internal/resolver"
)

// handleListFans returns the resolver output for the persisted exclusion
// list. The "view" query parameter selects the buckets: "all" (default),
// "populated" (areas holding any fan) or "active" (areas with included
// fans).
func (s *Server) handleListFans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	excluded := []string{}
	entry, err := s.flow.Current(ctx)
	switch {
	case err == nil:
		excluded = entry.Data.ExcludedEntities
	case !errors.Is(err, configflow.ErrEntryNotFound):
		s.writeServiceError(w, r, err)
		return
	}

	snap, err := s.registry.Snapshot(ctx)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	buckets := resolver.Resolve(snap, excluded, resolver.Options{DomainPrefix: s.fansCfg.DomainPrefix})

	switch view := r.URL.Query().Get("view"); view {
	case "", "all":
	case "populated":
		buckets = resolver.Populated(buckets)
	case "active":
		buckets = resolver.Active(buckets)
	default:
		writeBadRequest(w, "unknown view "+view)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"areas":    buckets,
		"total":    resolver.Count(buckets),
		"excluded": excluded,
	})
}
