package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Companion, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Note side.
	r.Get("/references", h.References)
	r.Get("/breadcrumbs", h.Breadcrumbs)
	r.Get("/neighbors", h.Neighbors)

	// Canvas side.
	r.Post("/cards", h.UpsertCard)
	r.Post("/canvases/adjust", h.AdjustGroups)
	r.Get("/canvases/references", h.CanvasReferences)

	r.Post("/index/rebuild", h.Rebuild)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
