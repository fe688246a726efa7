package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// Repository implements logsy.Repository using in-memory storage. A single
// lock stands in for the transactional store, so the object+association
// insert is both-or-neither here as well.
type Repository struct {
	mu          sync.RWMutex
	tasks       map[uuid.UUID]*logsy.Task
	objects     map[uuid.UUID]*logsy.Object
	groups      map[uuid.UUID]*logsy.Group
	sourceCodes map[uuid.UUID]*logsy.SourceCode
	taskObjects map[uuid.UUID]map[uuid.UUID]struct{} // task_id -> set<object_id>
}

// New creates a new in-memory repository
func New() logsy.Repository {
	return &Repository{
		tasks:       make(map[uuid.UUID]*logsy.Task),
		objects:     make(map[uuid.UUID]*logsy.Object),
		groups:      make(map[uuid.UUID]*logsy.Group),
		sourceCodes: make(map[uuid.UUID]*logsy.SourceCode),
		taskObjects: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Task operations

func (r *Repository) CreateTask(ctx context.Context, task *logsy.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task.SourceCodeID != nil {
		if _, exists := r.sourceCodes[*task.SourceCodeID]; !exists {
			return logsy.ErrSourceCodeNotFound
		}
	}

	// Create a copy to avoid external modifications
	taskCopy := *task
	r.tasks[task.ID] = &taskCopy

	return nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*logsy.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[id]
	if !exists {
		return nil, logsy.ErrTaskNotFound
	}

	// Return a copy to prevent external modifications
	taskCopy := *task
	return &taskCopy, nil
}

func (r *Repository) UpdateTask(ctx context.Context, task *logsy.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; !exists {
		return logsy.ErrTaskNotFound
	}

	taskCopy := *task
	r.tasks[task.ID] = &taskCopy

	return nil
}

func (r *Repository) ListTasks(ctx context.Context) ([]*logsy.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*logsy.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		taskCopy := *task
		result = append(result, &taskCopy)
	}

	// Sort by start_time descending, ID as tie-breaker for stable iteration
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].StartTime.After(result[j].StartTime)
	})

	return result, nil
}

// Object operations

func (r *Repository) CreateObject(ctx context.Context, object *logsy.Object, taskID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if taskID != nil {
		if _, exists := r.tasks[*taskID]; !exists {
			return logsy.ErrTaskNotFound
		}
	}

	objectCopy := *object
	r.objects[object.ID] = &objectCopy

	if taskID != nil {
		if r.taskObjects[*taskID] == nil {
			r.taskObjects[*taskID] = make(map[uuid.UUID]struct{})
		}
		r.taskObjects[*taskID][object.ID] = struct{}{}
	}

	return nil
}

func (r *Repository) GetObject(ctx context.Context, id uuid.UUID) (*logsy.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	object, exists := r.objects[id]
	if !exists {
		return nil, logsy.ErrObjectNotFound
	}

	objectCopy := *object
	return &objectCopy, nil
}

func (r *Repository) ListObjects(ctx context.Context, filter logsy.ObjectFilter) ([]*logsy.Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var linked map[uuid.UUID]struct{}
	if filter.TaskID != nil {
		linked = r.taskObjects[*filter.TaskID]
	}

	var result []*logsy.Object
	for _, object := range r.objects {
		if filter.TaskID != nil {
			if _, ok := linked[object.ID]; !ok {
				continue
			}
		}
		if filter.Type != nil && object.Type != *filter.Type {
			continue
		}
		objectCopy := *object
		result = append(result, &objectCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Group operations

func (r *Repository) CreateGroup(ctx context.Context, group *logsy.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if group.TaskID != nil {
		if _, exists := r.tasks[*group.TaskID]; !exists {
			return logsy.ErrTaskNotFound
		}
	}

	groupCopy := *group
	r.groups[group.ID] = &groupCopy

	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id uuid.UUID) (*logsy.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group, exists := r.groups[id]
	if !exists {
		return nil, logsy.ErrGroupNotFound
	}

	groupCopy := *group
	return &groupCopy, nil
}

func (r *Repository) ListGroups(ctx context.Context, taskID *uuid.UUID) ([]*logsy.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*logsy.Group
	for _, group := range r.groups {
		if taskID != nil {
			if group.TaskID == nil || *group.TaskID != *taskID {
				continue
			}
		}
		groupCopy := *group
		result = append(result, &groupCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Source code operations

func (r *Repository) CreateSourceCode(ctx context.Context, sourceCode *logsy.SourceCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sourceCodeCopy := *sourceCode
	r.sourceCodes[sourceCode.ID] = &sourceCodeCopy

	return nil
}

func (r *Repository) GetSourceCode(ctx context.Context, id uuid.UUID) (*logsy.SourceCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sourceCode, exists := r.sourceCodes[id]
	if !exists {
		return nil, logsy.ErrSourceCodeNotFound
	}

	sourceCodeCopy := *sourceCode
	return &sourceCodeCopy, nil
}
