package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// StorageHandler serves raw stored files by key, including tile pyramids
// produced during geotiff ingestion.
type StorageHandler struct {
	store logsy.BlobStore
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(store logsy.BlobStore) *StorageHandler {
	return &StorageHandler{store: store}
}

// Routes returns the routes for raw storage access
func (h *StorageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/*", h.GetFile)

	return r
}

// GetFile streams the stored bytes for the key in the request path
func (h *StorageHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" {
		http.Error(w, "Storage key is required", http.StatusBadRequest)
		return
	}

	reader, err := h.store.Download(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	if meta, err := h.store.GetMeta(r.Context(), key); err == nil {
		w.Header().Set("Content-Type", meta.ContentType)
	}

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream file", "key", key, "error", err)
	}
}
