package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/storage"
)

const (
	maxCommandBytes = 1 << 20
	maxImportBytes  = 10 << 20
)

// Handler holds API route handlers.
type Handler struct {
	sess      *session.Session
	exports   storage.Provider
	exportDir string
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session, exports storage.Provider, exportDir string) *Handler {
	return &Handler{sess: sess, exports: exports, exportDir: exportDir}
}

func (h *Handler) coord() *persist.Coordinator {
	return h.sess.Coordinator()
}

// force reports whether the caller agreed to drop unsaved edits.
func force(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return v
}

// guardDiscard refuses a load over unsaved edits unless the request is forced.
func (h *Handler) guardDiscard(r *http.Request, reason string) error {
	if force(r) || !h.coord().Dirty() {
		return nil
	}
	return fmt.Errorf("api: %s: %w", reason, apperr.ErrDiscardCancelled)
}

// GetOutline handles GET /api/outline.
//
//	@Summary		Get the open outline
//	@Tags			outline
//	@Produce		json
//	@Success		200	{object}	OutlineResponse
//	@Security		BearerAuth
//	@Router			/outline [get]
func (h *Handler) GetOutline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.View())
}

// ApplyCommand handles POST /api/outline/commands.
//
//	@Summary		Apply one editing command
//	@Tags			outline
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CommandRequest	true	"Command"
//	@Success		200		{object}	CommandResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/commands [post]
func (h *Handler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBytes)
	var cmd CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if cmd.Op == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("op is required"))
		return
	}
	res, err := h.sess.Apply(r.Context(), cmd)
	if err != nil {
		writeError(w, "apply", err)
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Result: res, State: h.coord().State()})
}

// Save handles POST /api/outline/save.
//
//	@Summary		Save to the current target
//	@Tags			persistence
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Failure		403	{object}	errResponse
//	@Failure		504	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if err := h.coord().Save(r.Context()); err != nil {
		writeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: h.coord().State()})
}

// Download handles GET /api/outline/export.
//
//	@Summary		Download the outline as a file
//	@Tags			persistence
//	@Produce		application/xhtml+xml
//	@Success		200
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/export [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	exp, err := h.coord().Export()
	if err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/xhtml+xml; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, exp.Content); err != nil {
		slog.Error("export write failed", slog.String("error", err.Error()))
	}
}

// ExportFile handles POST /api/outline/export.
//
//	@Summary		Write an export into the export directory
//	@Tags			persistence
//	@Produce		json
//	@Success		201	{object}	ExportResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/export [post]
func (h *Handler) ExportFile(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("export directory not configured"))
		return
	}
	p, err := h.coord().ExportTo(r.Context(), h.exports, h.exportDir)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	writeJSON(w, http.StatusCreated, ExportResponse{Path: p})
}

// New handles POST /api/outline/new.
//
//	@Summary		Start a new outline
//	@Tags			persistence
//	@Param			force	query		bool	false	"Drop unsaved changes"
//	@Success		200		{object}	StateResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/new [post]
func (h *Handler) New(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, "new document", h.coord().New)
}

// Reload handles POST /api/outline/reload.
//
//	@Summary		Reload the owned store
//	@Tags			persistence
//	@Param			force	query		bool	false	"Drop unsaved changes"
//	@Success		200		{object}	StateResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, "reload", h.coord().LoadOwned)
}

// Restore handles POST /api/outline/restore.
//
//	@Summary		Restore the unsaved draft
//	@Tags			persistence
//	@Param			force	query		bool	false	"Drop unsaved changes"
//	@Success		200		{object}	StateResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/restore [post]
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, "restore draft", h.coord().RestoreDraft)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, reason string, fn func(context.Context) error) {
	if err := h.guardDiscard(r, reason); err != nil {
		writeError(w, reason, err)
		return
	}
	if err := fn(r.Context()); err != nil {
		writeError(w, reason, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{State: h.coord().State()})
}

// Import handles POST /api/outline/import (multipart/form-data, field "file").
// The upload is opened as a copy; saving it goes to the owned store.
//
//	@Summary		Open an uploaded outline as a copy
//	@Tags			persistence
//	@Accept			multipart/form-data
//	@Param			file	formData	file	true	"Outline file"
//	@Param			force	query		bool	false	"Drop unsaved changes"
//	@Success		200		{object}	StateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	name := filepath.Base(header.Filename)
	h.load(w, r, "import "+name, func(ctx context.Context) error {
		return h.coord().OpenCopy(ctx, name, data)
	})
}
