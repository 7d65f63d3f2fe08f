package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/dagaz/internal/filter"
	"github.com/starford/dagaz/internal/journal"
	"github.com/starford/dagaz/internal/query"
	"github.com/starford/dagaz/internal/sse"
)

// Deps bundles the services the API routes need.
type Deps struct {
	Journal *journal.Service
	Engine  *query.Engine
	Filter  filter.Defaults
	Broker  *sse.Broker
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(deps Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(deps.Journal, deps.Engine, deps.Filter, deps.Broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entries CRUD.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/{id}", h.GetEntry)
	r.Put("/entries/{id}", h.UpdateEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)

	// Relations.
	r.Post("/entries/{id}/link", h.LinkEntry)
	r.Get("/entries/{id}/ancestors", h.Ancestors)
	r.Get("/entries/{id}/descendants", h.Descendants)

	// Attachments.
	r.Post("/entries/{id}/attachments", h.UploadAttachment)
	r.Get("/attachments/{attID}", h.ExportAttachment)

	// Aggregates.
	r.Get("/tags", h.Tags)
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by same auth middleware).
	if deps.Broker != nil {
		r.Get("/events", deps.Broker.ServeHTTP)
	}

	return r
}
