package logsy

import (
	"context"

	"github.com/google/uuid"
)

// Service is the task/object lifecycle and artifact-ingestion API. Every
// successful mutation publishes exactly one event after commit; failed
// mutations publish nothing.
type Service interface {
	// Task lifecycle
	CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*Task, error)
	ListTasks(ctx context.Context) ([]*Task, error)

	// Object ingestion
	IngestObject(ctx context.Context, req IngestObjectRequest) (*Object, error)
	GetObject(ctx context.Context, id uuid.UUID) (*Object, error)
	ListObjects(ctx context.Context, req ListObjectsRequest) ([]*Object, error)

	// Groups
	CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*Group, error)
	ListGroups(ctx context.Context, taskID *uuid.UUID) ([]*Group, error)

	// Source code
	CreateSourceCode(ctx context.Context, req CreateSourceCodeRequest) (*SourceCode, error)
	GetSourceCode(ctx context.Context, id uuid.UUID) (*SourceCode, error)
}
