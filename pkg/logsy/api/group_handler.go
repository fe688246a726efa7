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

// CreateGroupRequest is the request body for creating a group
type CreateGroupRequest struct {
	TaskID string         `json:"task_id,omitempty"`
	Name   string         `json:"name"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// GroupResponse is the response body for a group
type GroupResponse struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id,omitempty"`
	Name      string         `json:"name"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

func newGroupResponse(group *logsy.Group) GroupResponse {
	resp := GroupResponse{
		ID:        group.ID.String(),
		Name:      group.Name,
		Meta:      group.Meta,
		CreatedAt: group.CreatedAt,
	}
	if group.TaskID != nil {
		resp.TaskID = group.TaskID.String()
	}
	return resp
}

// GroupHandler handles HTTP requests for groups
type GroupHandler struct {
	service logsy.Service
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(service logsy.Service) *GroupHandler {
	return &GroupHandler{service: service}
}

// Routes returns the routes for groups
func (h *GroupHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateGroup)
	r.Get("/", h.ListGroups)
	r.Get("/{id}", h.GetGroup)

	return r
}

// CreateGroup creates a new group
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	createReq := logsy.CreateGroupRequest{Name: req.Name, Meta: req.Meta}
	if req.TaskID != "" {
		taskID, err := uuid.Parse(req.TaskID)
		if err != nil {
			http.Error(w, "Invalid task ID", http.StatusBadRequest)
			return
		}
		createReq.TaskID = &taskID
	}

	group, err := h.service.CreateGroup(r.Context(), createReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newGroupResponse(group))
}

// GetGroup returns a group by ID
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	group, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newGroupResponse(group))
}

// ListGroups returns groups, optionally scoped to one task
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	var taskID *uuid.UUID
	if raw := r.URL.Query().Get("task_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "Invalid task ID", http.StatusBadRequest)
			return
		}
		taskID = &id
	}

	groups, err := h.service.ListGroups(r.Context(), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		resp = append(resp, newGroupResponse(group))
	}

	render.JSON(w, r, resp)
}
