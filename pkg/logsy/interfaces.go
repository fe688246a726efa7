package logsy

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the byte-level interface to the storage root. Keys are
// generated by the service and never reused, so concurrent uploads cannot
// collide.
type BlobStore interface {
	// Upload writes the bytes for key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download streams the bytes stored under key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the bytes stored under key.
	Delete(ctx context.Context, key string) error

	// GetMeta retrieves storage-level metadata for key.
	GetMeta(ctx context.Context, key string) (*BlobMeta, error)
}

// BlobMeta contains storage-level metadata about a stored artifact.
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// ObjectFilter narrows ListObjects. Filters are conjunctive when both are
// supplied; a TaskID filter joins through the task association, so an
// unlinked object never matches it.
type ObjectFilter struct {
	TaskID *uuid.UUID
	Type   *ObjectType
}

// Repository defines the persistence contract for tasks, objects, groups
// and source code.
type Repository interface {
	// Task operations
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	ListTasks(ctx context.Context) ([]*Task, error)

	// Object operations. CreateObject persists the object and, when taskID
	// is non-nil, the task association in the same transaction
	// (both-or-neither).
	CreateObject(ctx context.Context, object *Object, taskID *uuid.UUID) error
	GetObject(ctx context.Context, id uuid.UUID) (*Object, error)
	ListObjects(ctx context.Context, filter ObjectFilter) ([]*Object, error)

	// Group operations
	CreateGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, id uuid.UUID) (*Group, error)
	ListGroups(ctx context.Context, taskID *uuid.UUID) ([]*Group, error)

	// Source code operations
	CreateSourceCode(ctx context.Context, sourceCode *SourceCode) error
	GetSourceCode(ctx context.Context, id uuid.UUID) (*SourceCode, error)
}

// TileResult is the successful output of a tiling call.
type TileResult struct {
	// Path locates the produced tile pyramid.
	Path string

	// Meta is the tiling service's metadata. On success it contains at
	// least an "extension" entry used to build the XYZ URL template.
	Meta map[string]any
}

// Tiler converts a raster artifact into a pyramided tile set plus metadata.
// Implementations report failure with *TilingError.
type Tiler interface {
	CreateTiles(ctx context.Context, path string) (*TileResult, error)
}
