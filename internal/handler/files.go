package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/storage"
)

// FileHandler serves stored objects when the provider has no public URL of
// its own (local storage).
//
// Routes handled:
//   - GET /files/{key...} -> ServeFile
type FileHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(store storage.Storage, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes registers file routes. They are public.
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /files/{key...}", h.ServeFile)
}

func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	const op = "files.serve"
	key := r.PathValue("key")

	rc, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			err = domain.NotFound(op, "file", key)
		case errors.Is(err, storage.ErrInvalidKey):
			err = domain.Invalid(op, "invalid file path")
		default:
			err = domain.Internal(err, op, "failed to read file")
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.LastModified.IsZero() {
		w.Header().Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("file copy interrupted", "key", key, "error", err)
	}
}
