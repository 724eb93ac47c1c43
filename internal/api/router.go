package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/inkwell/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// GET /media/* serves image files without auth so previews can embed them.
func NewRouter(ws *workspace.Workspace, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws)

	r := chi.NewRouter()
	r.Get("/media/*", h.ServeMedia)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Site selection and scanning.
		r.Get("/site", h.GetSite)
		r.Put("/site", h.SelectSite)
		r.Post("/site/rescan", h.Rescan)
		r.Delete("/site/grant", h.ForgetSite)

		// Posts.
		r.Get("/posts", h.ListPosts)
		r.Post("/posts", h.CreatePost)

		// Editing session.
		r.Post("/session/open", h.OpenSession)
		r.Get("/session", h.GetSession)
		r.Put("/session/body", h.UpdateBody)
		r.Put("/session/metadata", h.UpdateMetadata)
		r.Put("/session/metadata/{key}", h.UpdateField)
		r.Delete("/session/metadata/{key}", h.DeleteField)
		r.Post("/session/save", h.Save)
		r.Get("/session/preview", h.Preview)

		// Images.
		r.Get("/assets", h.ListAssets)
		r.Post("/assets", h.UploadAssets)
		r.Delete("/assets/*", h.DeleteAsset)

		// Search.
		r.Get("/search", h.Search)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
