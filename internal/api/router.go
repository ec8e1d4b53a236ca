package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(idx Index, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Reads.
	r.Get("/stats", h.Stats)
	r.Get("/tree/{family}", h.Tree)
	r.Get("/nodes/{family}/*", h.Node)
	r.Get("/children/{family}", h.Children)
	r.Get("/children/{family}/*", h.Children)

	// Local mutations.
	r.Route("/mutations", func(r chi.Router) {
		r.Post("/insert", h.mutation(func() mutationRequest { return &InsertRequest{} }, http.StatusCreated))
		r.Post("/delete", h.mutation(func() mutationRequest { return &NodeRequest{} }, http.StatusOK))
		r.Post("/rename", h.mutation(func() mutationRequest { return &RenameRequest{} }, http.StatusOK))
		r.Post("/move", h.mutation(func() mutationRequest { return &MoveRequest{} }, http.StatusOK))
		r.Post("/copy", h.mutation(func() mutationRequest { return &CopyRequest{} }, http.StatusOK))
		r.Post("/reorder", h.mutation(func() mutationRequest { return &ReorderRequest{} }, http.StatusOK))
	})

	// Replication intake.
	r.Post("/deltas", h.SubmitDelta)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
