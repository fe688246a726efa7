package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// file parts spill to disk.
const maxUploadMemory = 32 << 20

// ObjectResponse is the response body for an object
type ObjectResponse struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Path          string         `json:"path"`
	PathType      string         `json:"path_type"`
	AlgorithmName string         `json:"algorithm_name,omitempty"`
	Meta          map[string]any `json:"meta"`
	PreviewPath   string         `json:"preview_path,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func newObjectResponse(object *logsy.Object) ObjectResponse {
	return ObjectResponse{
		ID:            object.ID.String(),
		Type:          string(object.Type),
		Path:          object.Path,
		PathType:      string(object.PathType),
		AlgorithmName: object.AlgorithmName,
		Meta:          object.Meta,
		PreviewPath:   object.PreviewPath,
		CreatedAt:     object.CreatedAt,
	}
}

// ObjectHandler handles HTTP requests for objects
type ObjectHandler struct {
	service logsy.Service
	store   logsy.BlobStore
}

// NewObjectHandler creates a new object handler. The store is used to serve
// bytes for service-managed objects.
func NewObjectHandler(service logsy.Service, store logsy.BlobStore) *ObjectHandler {
	return &ObjectHandler{service: service, store: store}
}

// Routes returns the routes for objects
func (h *ObjectHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.IngestObject)
	r.Get("/", h.ListObjects)
	r.Get("/{id}", h.GetObject)
	r.Get("/{id}/data", h.GetObjectData)

	return r
}

// IngestObject accepts a multipart submission carrying either an uploaded
// file or an external path, plus type, optional meta, algorithm name and
// task association.
func (h *ObjectHandler) IngestObject(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := logsy.IngestObjectRequest{
		Type:          logsy.ObjectType(r.FormValue("type")),
		Path:          r.FormValue("path"),
		AlgorithmName: r.FormValue("algorithm_name"),
		Meta:          r.FormValue("meta"),
	}

	if taskID := r.FormValue("task_id"); taskID != "" {
		id, err := uuid.Parse(taskID)
		if err != nil {
			slog.Error("Invalid task ID", "task_id", taskID, "error", err)
			http.Error(w, "Invalid task ID", http.StatusBadRequest)
			return
		}
		req.TaskID = &id
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		req.File = file
		req.FileName = header.Filename
	case errors.Is(err, http.ErrMissingFile):
		// Path-only submission
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	object, err := h.service.IngestObject(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newObjectResponse(object))
}

// GetObject returns an object by ID
func (h *ObjectHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid object ID", http.StatusBadRequest)
		return
	}

	object, err := h.service.GetObject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newObjectResponse(object))
}

// GetObjectData streams the stored bytes of a service-managed object.
// Objects recorded by reference have no service-held bytes to serve.
func (h *ObjectHandler) GetObjectData(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid object ID", http.StatusBadRequest)
		return
	}

	object, err := h.service.GetObject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if object.PathType != logsy.PathTypeAbsolute {
		writeError(w, r, logsy.ErrObjectNotServed)
		return
	}

	reader, err := h.store.Download(r.Context(), object.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	if meta, err := h.store.GetMeta(r.Context(), object.Path); err == nil {
		w.Header().Set("Content-Type", meta.ContentType)
	}

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream object data", "object_id", id, "error", err)
	}
}

// ListObjects returns objects matching the optional task_id and type query
// filters, newest first
func (h *ObjectHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	var req logsy.ListObjectsRequest

	if taskID := r.URL.Query().Get("task_id"); taskID != "" {
		id, err := uuid.Parse(taskID)
		if err != nil {
			http.Error(w, "Invalid task ID", http.StatusBadRequest)
			return
		}
		req.TaskID = &id
	}

	if objectType := r.URL.Query().Get("type"); objectType != "" {
		t := logsy.ObjectType(objectType)
		req.Type = &t
	}

	objects, err := h.service.ListObjects(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]ObjectResponse, 0, len(objects))
	for _, object := range objects {
		resp = append(resp, newObjectResponse(object))
	}

	render.JSON(w, r, resp)
}
