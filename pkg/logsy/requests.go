package logsy

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs

// CreateTaskRequest contains parameters for creating a task
type CreateTaskRequest struct {
	SourceCodeID *uuid.UUID
	Inputs       map[string]any
}

// UpdateTaskRequest contains parameters for a partial task update. Nil
// fields are left untouched, not reset.
type UpdateTaskRequest struct {
	Status     *TaskStatus
	Stacktrace *string
}

// IngestObjectRequest contains parameters for submitting an artifact.
//
// Exactly one of File or Path must be set: File carries bytes the service
// copies under its storage root, Path is a caller-owned reference stored
// verbatim. Meta is raw JSON text; empty means {}.
type IngestObjectRequest struct {
	Type          ObjectType
	File          io.Reader
	FileName      string
	Path          string
	TaskID        *uuid.UUID
	AlgorithmName string
	Meta          string
}

// ListObjectsRequest contains conjunctive filters for listing objects
type ListObjectsRequest struct {
	TaskID *uuid.UUID
	Type   *ObjectType
}

// CreateGroupRequest contains parameters for creating a group
type CreateGroupRequest struct {
	TaskID *uuid.UUID
	Name   string
	Meta   map[string]any
}

// CreateSourceCodeRequest carries worker code to register. The service
// stores the code under a generated entry point.
type CreateSourceCodeRequest struct {
	SourceCode string
}
