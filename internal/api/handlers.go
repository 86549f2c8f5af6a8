package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/uhskit/internal/apperr"
	"github.com/starford/uhskit/internal/hintservice"
	"github.com/starford/uhskit/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Handler holds API route handlers.
type Handler struct {
	svc    *hintservice.Service
	notify Notify
}

// NewHandler creates a new Handler.
func NewHandler(svc *hintservice.Service, notify Notify) *Handler {
	if notify == nil {
		notify = func(models.FileChange) {}
	}
	return &Handler{svc: svc, notify: notify}
}

// filePath extracts the library path from the URL (everything after /api/files/).
// Supports encoded slashes from OpenAPI clients (e.g. games%2Fharbor.uhs).
func filePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeServiceError maps service errors to status codes. Anything unexpected
// is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalidFormat):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	return v, err == nil
}

// ListFiles handles GET /api/files.
//
//	@Summary		List cataloged hint files
//	@Tags			files
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, title, updated)
//	@Success		200		{object}	FileListResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	files, total, err := h.svc.ListFiles(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeServiceError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, FileListResponse{Files: files, Total: total})
}

// GetFile handles GET /api/files/*.
//
//	@Summary		Get the catalog row of one file
//	@Tags			files
//	@Produce		json
//	@Param			path	path		string	true	"Library path"
//	@Success		200		{object}	HintFile
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	f, err := h.svc.GetFile(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get file", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFile handles DELETE /api/files/*.
//
//	@Summary		Delete a file from the library
//	@Tags			files
//	@Param			path	path	string	true	"Library path"
//	@Success		204		"File deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{path} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		writeServiceError(w, "delete file", err, slog.String("path", path))
		return
	}
	h.notify(models.FileChange{Kind: models.ChangeDeleted, Path: path})
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /api/files (multipart/form-data, field "file"). The
// optional "path" field names the library path; it defaults to the file name.
//
//	@Summary		Upload a hint file
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		201	{object}	UploadResponse
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	path := r.FormValue("path")
	if path == "" {
		path = header.Filename
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	f, err := h.svc.Import(r.Context(), path, data)
	if err != nil {
		writeServiceError(w, "upload", err, slog.String("path", path))
		return
	}
	h.notify(models.FileChange{Kind: models.ChangeCreated, Path: f.Path, File: f})
	writeJSON(w, http.StatusCreated, UploadResponse{File: *f})
}

// Outline handles GET /api/outline.
//
//	@Summary		Get the stored outline of a file
//	@Tags			reading
//	@Produce		json
//	@Param			path	query		string	true	"Library path"
//	@Success		200		{object}	snapshot.Snapshot
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/outline [get]
func (h *Handler) Outline(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	snap, err := h.svc.Outline(r.Context(), path)
	if err != nil {
		writeServiceError(w, "outline", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Node handles GET /api/node.
//
//	@Summary		Follow a link ID and reveal children
//	@Tags			reading
//	@Produce		json
//	@Param			path	query		string	true	"Library path"
//	@Param			id		query		int		false	"Link ID, 0 for the root"
//	@Param			reveal	query		int		false	"Children to reveal"
//	@Success		200		{object}	NodeView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/node [get]
func (h *Handler) Node(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	id, okID := intParam(r, "id", 0)
	reveal, okReveal := intParam(r, "reveal", -1)
	if path == "" || !okID || !okReveal {
		writeJSON(w, http.StatusBadRequest, errorBody("'path' is required; 'id' and 'reveal' must be integers"))
		return
	}
	v, err := h.svc.Node(r.Context(), path, id, reveal)
	if err != nil {
		writeServiceError(w, "node", err, slog.String("path", path), slog.Int("id", id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

var binaryTypes = map[string]string{
	"image": "image/png",
	"audio": "audio/wav",
}

// Binary handles GET /api/binary and streams an image or sound payload.
//
//	@Summary		Stream a binary payload
//	@Tags			reading
//	@Produce		octet-stream
//	@Param			path	query	string	true	"Library path"
//	@Param			id		query	int		true	"Link ID"
//	@Param			child	query	int		false	"Child index of the node"
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/binary [get]
func (h *Handler) Binary(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	id, okID := intParam(r, "id", 0)
	child, okChild := intParam(r, "child", -1)
	if path == "" || id <= 0 || !okID || !okChild {
		writeJSON(w, http.StatusBadRequest, errorBody("'path' and a positive 'id' are required"))
		return
	}
	rc, info, err := h.svc.Binary(r.Context(), path, id, child)
	if err != nil {
		writeServiceError(w, "binary", err, slog.String("path", path), slog.Int("id", id))
		return
	}
	defer rc.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	head = head[:n]
	ctype := http.DetectContentType(head)
	if ctype == "application/octet-stream" {
		if t, ok := binaryTypes[info.Kind]; ok {
			ctype = t
		}
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(head)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("binary stream interrupted", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// Search handles GET /api/search.
//
//	@Summary		Search subject and question titles
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	if results == nil {
		results = []SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Convert handles POST /api/convert.
//
//	@Summary		Rewrite a file in another format
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ConvertRequest	true	"Conversion"
//	@Success		201		{object}	HintFile
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Format == "" || req.Target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path, format and target are required"))
		return
	}
	f, err := h.svc.Convert(r.Context(), req.Path, req.Format, req.Target)
	if err != nil {
		writeServiceError(w, "convert", err, slog.String("path", req.Path), slog.String("target", req.Target))
		return
	}
	h.notify(models.FileChange{Kind: models.ChangeCreated, Path: f.Path, File: f})
	writeJSON(w, http.StatusCreated, f)
}
