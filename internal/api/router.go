package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/models"
)

// Notify is called after a request changes the library, with a created
// change (carrying the new catalog row) or a deleted one.
type Notify func(models.FileChange)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notify, if non-nil, reports library changes made through the API.
func NewRouter(svc *hintservice.Service, authEnabled bool, token string, sseHandler http.Handler, notify Notify) chi.Router {
	h := NewHandler(svc, notify)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Library.
	r.Get("/files", h.ListFiles)
	r.Post("/files", h.Upload)
	r.Get("/files/*", h.GetFile)
	r.Delete("/files/*", h.DeleteFile)

	// Reading.
	r.Get("/outline", h.Outline)
	r.Get("/node", h.Node)
	r.Get("/binary", h.Binary)

	// Search.
	r.Get("/search", h.Search)

	// Conversion.
	r.Post("/convert", h.Convert)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
