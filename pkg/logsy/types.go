package logsy

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the domain type for task lifecycle states.
type TaskStatus string

// Task status constants (typed).
const (
	TaskStatusCreated   TaskStatus = "created"
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusAborted   TaskStatus = "aborted"
)

// IsValid reports whether s is one of the five task states.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusStarted, TaskStatusRunning,
		TaskStatusCompleted, TaskStatusAborted:
		return true
	}
	return false
}

// ObjectType classifies the artifact carried by an Object. Only
// ObjectTypeGeoTIFF triggers the tiling call during ingestion.
type ObjectType string

// Object type constants (typed).
const (
	ObjectTypeImage   ObjectType = "image"
	ObjectTypeJSON    ObjectType = "json"
	ObjectTypeXYZ     ObjectType = "xyz"
	ObjectTypeGeoTIFF ObjectType = "geotiff"
	ObjectTypeGeoJSON ObjectType = "geojson"
	ObjectTypeHTML    ObjectType = "html"
)

// IsValid reports whether t is a known object type.
func (t ObjectType) IsValid() bool {
	switch t {
	case ObjectTypeImage, ObjectTypeJSON, ObjectTypeXYZ,
		ObjectTypeGeoTIFF, ObjectTypeGeoJSON, ObjectTypeHTML:
		return true
	}
	return false
}

// PathType tells consumers how an Object's path must be resolved.
type PathType string

const (
	// PathTypeAbsolute marks a service-owned copy stored under the storage root.
	PathTypeAbsolute PathType = "absolute"
	// PathTypeRelative marks a caller-owned reference stored verbatim; the
	// service never validates or serves such paths.
	PathTypeRelative PathType = "relative"
	// PathTypeURL marks an externally resolvable reference.
	PathTypeURL PathType = "url"
)

// IsValid reports whether t is a known path type.
func (t PathType) IsValid() bool {
	switch t {
	case PathTypeAbsolute, PathTypeRelative, PathTypeURL:
		return true
	}
	return false
}

// Task is a tracked unit of external work with a status lifecycle. The
// service records state reported to it; it does not schedule or retry.
//
// Stacktrace is set if and only if Status is TaskStatusAborted. StartTime is
// assigned at creation and immutable thereafter.
type Task struct {
	ID           uuid.UUID      `json:"id"`
	Status       TaskStatus     `json:"status"`
	Stacktrace   *string        `json:"stacktrace,omitempty"`
	SourceCodeID *uuid.UUID     `json:"source_code_id,omitempty"`
	Inputs       map[string]any `json:"inputs"`
	StartTime    time.Time      `json:"start_time"`
}

// Object is a persisted artifact record. Objects are created only through
// the ingestion pipeline and are immutable after creation. An Object may be
// associated with zero or more Tasks; the association is stored separately
// and never on the Object itself.
type Object struct {
	ID            uuid.UUID      `json:"id"`
	Type          ObjectType     `json:"type"`
	Path          string         `json:"path"`
	PathType      PathType       `json:"path_type"`
	AlgorithmName string         `json:"algorithm_name,omitempty"`
	Meta          map[string]any `json:"meta"`
	PreviewPath   string         `json:"preview_path,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Group is a named partition of artifacts, optionally scoped to a single
// Task. Groups are created once and never mutated.
type Group struct {
	ID        uuid.UUID      `json:"id"`
	TaskID    *uuid.UUID     `json:"task_id,omitempty"`
	Name      string         `json:"name"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// SourceCode is an immutable reference to worker code registered with the
// service. EntryPoint names the stored file under the storage root.
type SourceCode struct {
	ID         uuid.UUID `json:"id"`
	EntryPoint string    `json:"entry_point"`
	CreatedAt  time.Time `json:"created_at"`
}
