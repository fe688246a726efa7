package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// CreateSourceCodeRequest is the request body for registering worker code
type CreateSourceCodeRequest struct {
	SourceCode string `json:"source_code"`
}

// SourceCodeResponse is the response body for a source code record
type SourceCodeResponse struct {
	ID         string    `json:"id"`
	EntryPoint string    `json:"entry_point"`
	CreatedAt  time.Time `json:"created_at"`
}

func newSourceCodeResponse(sc *logsy.SourceCode) SourceCodeResponse {
	return SourceCodeResponse{
		ID:         sc.ID.String(),
		EntryPoint: sc.EntryPoint,
		CreatedAt:  sc.CreatedAt,
	}
}

// SourceCodeHandler handles HTTP requests for source code records
type SourceCodeHandler struct {
	service logsy.Service
}

// NewSourceCodeHandler creates a new source code handler
func NewSourceCodeHandler(service logsy.Service) *SourceCodeHandler {
	return &SourceCodeHandler{service: service}
}

// Routes returns the routes for source code
func (h *SourceCodeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSourceCode)
	r.Get("/{id}", h.GetSourceCode)

	return r
}

// CreateSourceCode stores worker code and returns its entry point
func (h *SourceCodeHandler) CreateSourceCode(w http.ResponseWriter, r *http.Request) {
	var req CreateSourceCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc, err := h.service.CreateSourceCode(r.Context(), logsy.CreateSourceCodeRequest{
		SourceCode: req.SourceCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newSourceCodeResponse(sc))
}

// GetSourceCode returns a source code record by ID
func (h *SourceCodeHandler) GetSourceCode(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid source code ID", http.StatusBadRequest)
		return
	}

	sc, err := h.service.GetSourceCode(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newSourceCodeResponse(sc))
}
