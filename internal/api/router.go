package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// exports, if non-nil, receives documents written by POST /outline/export
// under exportDir.
func NewRouter(sess *session.Session, authEnabled bool, token string, sseHandler http.Handler, exports storage.Provider, exportDir string) chi.Router {
	h := NewHandler(sess, exports, exportDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Document state and editing.
	r.Get("/outline", h.GetOutline)
	r.Post("/outline/commands", h.ApplyCommand)

	// Persistence.
	r.Post("/outline/save", h.Save)
	r.Get("/outline/export", h.Download)
	r.Post("/outline/export", h.ExportFile)

	// Loads. Each refuses to drop unsaved edits unless force=true.
	r.Post("/outline/new", h.New)
	r.Post("/outline/reload", h.Reload)
	r.Post("/outline/restore", h.Restore)
	r.Post("/outline/import", h.Import)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
