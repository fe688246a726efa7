package logsy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface
type service struct {
	repository Repository
	store      BlobStore
	tiler      Tiler
	bus        EventBus
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the storage backend for service-managed artifacts
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithTiler sets the tiling collaborator used for geotiff ingestion
func WithTiler(tiler Tiler) Option {
	return func(s *service) {
		s.tiler = tiler
	}
}

// WithEventBus sets the event bus for the service
func WithEventBus(bus EventBus) Option {
	return func(s *service) {
		s.bus = bus
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		bus: NewNoopEventBus(),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

// publish hands an event to the bus after a committed mutation. Publish
// failures degrade observability but never the mutation itself.
func (s *service) publish(ctx context.Context, eventType EventType, instance any) {
	if err := s.bus.Publish(ctx, eventType, instance); err != nil {
		slog.Error("Failed to publish event", "type", eventType, "err", err)
	}
}

// Task lifecycle

func (s *service) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	task := &Task{
		ID:           uuid.New(),
		Status:       TaskStatusCreated,
		SourceCodeID: req.SourceCodeID,
		Inputs:       req.Inputs,
		StartTime:    time.Now().UTC(),
	}
	if task.Inputs == nil {
		task.Inputs = map[string]any{}
	}

	if err := s.repository.CreateTask(ctx, task); err != nil {
		return nil, &TaskError{TaskID: task.ID, Op: "create", Err: err}
	}

	s.publish(ctx, EventTaskCreated, task)

	return task, nil
}

func (s *service) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.repository.GetTask(ctx, id)
}

func (s *service) UpdateTask(ctx context.Context, id uuid.UUID, req UpdateTaskRequest) (*Task, error) {
	task, err := s.repository.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTaskStatus, *req.Status)
		}
		task.Status = *req.Status
		if task.Status != TaskStatusAborted {
			// A stacktrace only ever describes an aborted run.
			task.Stacktrace = nil
		}
	}
	if req.Stacktrace != nil {
		task.Stacktrace = req.Stacktrace
	}

	if task.Stacktrace != nil && task.Status != TaskStatusAborted {
		return nil, ErrStacktraceWithoutAbort
	}
	if task.Status == TaskStatusAborted && task.Stacktrace == nil {
		return nil, ErrAbortWithoutStacktrace
	}

	if err := s.repository.UpdateTask(ctx, task); err != nil {
		return nil, &TaskError{TaskID: id, Op: "update", Err: err}
	}

	s.publish(ctx, EventTaskUpdated, task)

	return task, nil
}

func (s *service) ListTasks(ctx context.Context) ([]*Task, error) {
	return s.repository.ListTasks(ctx)
}

// Object ingestion

func (s *service) IngestObject(ctx context.Context, req IngestObjectRequest) (*Object, error) {
	if !req.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidObjectType, req.Type)
	}
	if req.File != nil && req.Path != "" {
		return nil, ErrObjectSourceConflict
	}

	meta := map[string]any{}
	if req.Meta != "" {
		if err := json.Unmarshal([]byte(req.Meta), &meta); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
		}
	}

	var (
		path     string
		pathType PathType
		stored   bool
	)
	switch {
	case req.File != nil:
		key := uuid.New().String() + filepath.Ext(req.FileName)
		if err := s.store.Upload(ctx, key, req.File); err != nil {
			return nil, &ObjectError{Op: "upload", Err: err}
		}
		path, pathType, stored = key, PathTypeAbsolute, true
	case req.Path != "":
		// Caller-owned reference: stored verbatim, no existence check, no
		// byte copy.
		path, pathType = req.Path, PathTypeRelative
	default:
		return nil, ErrObjectSourceRequired
	}

	if req.Type == ObjectTypeGeoTIFF {
		tiled, err := s.tile(ctx, path)
		if err != nil {
			s.discardStored(ctx, path, stored)
			return nil, err
		}
		for k, v := range tiled.Meta {
			meta[k] = v
		}
		extension, _ := tiled.Meta["extension"].(string)
		meta["xyz"] = fmt.Sprintf("%s/{z}/{x}/{-y}.%s", tiled.Path, extension)
	}

	object := &Object{
		ID:            uuid.New(),
		Type:          req.Type,
		Path:          path,
		PathType:      pathType,
		AlgorithmName: req.AlgorithmName,
		Meta:          meta,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repository.CreateObject(ctx, object, req.TaskID); err != nil {
		s.discardStored(ctx, path, stored)
		if IsNotFound(err) {
			return nil, err
		}
		return nil, &ObjectError{ObjectID: object.ID, Op: "create", Err: err}
	}

	s.publish(ctx, EventObjectCreated, object)

	return object, nil
}

// tile runs the external tiling call and validates its output.
func (s *service) tile(ctx context.Context, path string) (*TileResult, error) {
	if s.tiler == nil {
		return nil, &TilingError{Path: path, Err: errors.New("tiler is not configured")}
	}

	result, err := s.tiler.CreateTiles(ctx, path)
	if err != nil {
		var te *TilingError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &TilingError{Path: path, Err: err}
	}

	if extension, _ := result.Meta["extension"].(string); extension == "" {
		return nil, &TilingError{Path: path, Err: errors.New("tiling meta is missing extension")}
	}

	return result, nil
}

// discardStored removes bytes written for a submission that will not be
// persisted, so a failed ingestion leaves no orphan artifact behind.
func (s *service) discardStored(ctx context.Context, key string, stored bool) {
	if !stored {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("Failed to remove stored bytes for discarded submission", "key", key, "err", err)
	}
}

func (s *service) GetObject(ctx context.Context, id uuid.UUID) (*Object, error) {
	return s.repository.GetObject(ctx, id)
}

func (s *service) ListObjects(ctx context.Context, req ListObjectsRequest) ([]*Object, error) {
	return s.repository.ListObjects(ctx, ObjectFilter{TaskID: req.TaskID, Type: req.Type})
}

// Groups

func (s *service) CreateGroup(ctx context.Context, req CreateGroupRequest) (*Group, error) {
	group := &Group{
		ID:        uuid.New(),
		TaskID:    req.TaskID,
		Name:      req.Name,
		Meta:      req.Meta,
		CreatedAt: time.Now().UTC(),
	}
	if group.Meta == nil {
		group.Meta = map[string]any{}
	}

	if err := s.repository.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	return group, nil
}

func (s *service) GetGroup(ctx context.Context, id uuid.UUID) (*Group, error) {
	return s.repository.GetGroup(ctx, id)
}

func (s *service) ListGroups(ctx context.Context, taskID *uuid.UUID) ([]*Group, error) {
	return s.repository.ListGroups(ctx, taskID)
}

// Source code

func (s *service) CreateSourceCode(ctx context.Context, req CreateSourceCodeRequest) (*SourceCode, error) {
	if strings.TrimSpace(req.SourceCode) == "" {
		return nil, ErrEmptySourceCode
	}

	id := uuid.New()
	entryPoint := fmt.Sprintf("src_%s.py", strings.ReplaceAll(id.String(), "-", "")[:8])

	if err := s.store.Upload(ctx, entryPoint, strings.NewReader(req.SourceCode)); err != nil {
		return nil, fmt.Errorf("failed to store source code: %w", err)
	}

	sourceCode := &SourceCode{
		ID:         id,
		EntryPoint: entryPoint,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repository.CreateSourceCode(ctx, sourceCode); err != nil {
		s.discardStored(ctx, entryPoint, true)
		return nil, err
	}

	return sourceCode, nil
}

func (s *service) GetSourceCode(ctx context.Context, id uuid.UUID) (*SourceCode, error) {
	return s.repository.GetSourceCode(ctx, id)
}
