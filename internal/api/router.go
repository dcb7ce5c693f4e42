package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/metrics", s.handleMetrics)

			r.Route("/areas", func(r chi.Router) {
				r.Get("/", s.handleListAreas)
				r.Post("/", s.handleCreateArea)
				r.Get("/{id}", s.handleGetArea)
				r.Delete("/{id}", s.handleDeleteArea)
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/{id}", s.handleGetDevice)
				r.Delete("/{id}", s.handleDeleteDevice)
			})

			r.Route("/entities", func(r chi.Router) {
				r.Get("/", s.handleListEntities)
				r.Post("/", s.handleRegisterEntity)
				r.Get("/{entity_id}", s.handleGetEntity)
				r.Delete("/{entity_id}", s.handleRemoveEntity)
			})

			r.Route("/states", func(r chi.Router) {
				r.Get("/", s.handleListStates)
				r.Get("/{entity_id}", s.handleGetState)
				r.Put("/{entity_id}", s.handleSetState)
			})

			r.Get("/fans", s.handleListFans)

			r.Route("/aggregates", func(r chi.Router) {
				r.Get("/", s.handleListAggregates)
				r.Route("/{entity_id}", func(r chi.Router) {
					r.Get("/", s.handleGetAggregate)
					r.Post("/turn_on", s.handleTurnOn)
					r.Post("/turn_off", s.handleTurnOff)
				})
			})

			r.Route("/config", func(r chi.Router) {
				r.Get("/flow", s.handleFlowForm)
				r.Post("/flow", s.handleFlowSubmit)
				r.Route("/entries", func(r chi.Router) {
					r.Get("/", s.handleListEntries)
					r.Route("/{id}", func(r chi.Router) {
						r.Delete("/", s.handleRemoveEntry)
						r.Get("/options", s.handleOptionsForm)
						r.Post("/options", s.handleOptionsSubmit)
						r.Post("/reload", s.handleReloadEntry)
					})
				})
			})

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
