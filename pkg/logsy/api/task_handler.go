package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// CreateTaskRequest is the request body for creating a task. Inputs is kept
// raw so a non-object value surfaces as a validation error, not a decode
// failure.
type CreateTaskRequest struct {
	SourceCodeID string          `json:"source_code_id,omitempty"`
	Inputs       json.RawMessage `json:"inputs,omitempty"`
}

// UpdateTaskRequest is the request body for a partial task update
type UpdateTaskRequest struct {
	Status     *string `json:"status,omitempty"`
	Stacktrace *string `json:"stacktrace,omitempty"`
}

// TaskResponse is the response body for a task
type TaskResponse struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Stacktrace   *string        `json:"stacktrace,omitempty"`
	SourceCodeID string         `json:"source_code_id,omitempty"`
	Inputs       map[string]any `json:"inputs"`
	StartTime    time.Time      `json:"start_time"`
}

func newTaskResponse(task *logsy.Task) TaskResponse {
	resp := TaskResponse{
		ID:         task.ID.String(),
		Status:     string(task.Status),
		Stacktrace: task.Stacktrace,
		Inputs:     task.Inputs,
		StartTime:  task.StartTime,
	}
	if task.SourceCodeID != nil {
		resp.SourceCodeID = task.SourceCodeID.String()
	}
	return resp
}

// TaskHandler handles HTTP requests for tasks
type TaskHandler struct {
	service logsy.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service logsy.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

// Routes returns the routes for tasks
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateTask)
	r.Get("/", h.ListTasks)
	r.Get("/{id}", h.GetTask)
	r.Patch("/{id}", h.UpdateTask)

	return r
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var createReq logsy.CreateTaskRequest
	if len(req.Inputs) > 0 && string(req.Inputs) != "null" {
		if err := json.Unmarshal(req.Inputs, &createReq.Inputs); err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", logsy.ErrInvalidInputs, err))
			return
		}
	}
	if req.SourceCodeID != "" {
		sourceCodeID, err := uuid.Parse(req.SourceCodeID)
		if err != nil {
			slog.Error("Invalid source code ID", "source_code_id", req.SourceCodeID, "error", err)
			http.Error(w, "Invalid source code ID", http.StatusBadRequest)
			return
		}
		createReq.SourceCodeID = &sourceCodeID
	}

	task, err := h.service.CreateTask(r.Context(), createReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newTaskResponse(task))
}

// GetTask returns a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	task, err := h.service.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newTaskResponse(task))
}

// UpdateTask applies a partial update to a task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updateReq := logsy.UpdateTaskRequest{Stacktrace: req.Stacktrace}
	if req.Status != nil {
		status := logsy.TaskStatus(*req.Status)
		updateReq.Status = &status
	}

	task, err := h.service.UpdateTask(r.Context(), id, updateReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, newTaskResponse(task))
}

// ListTasks returns all tasks, newest first
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, newTaskResponse(task))
	}

	render.JSON(w, r, resp)
}
