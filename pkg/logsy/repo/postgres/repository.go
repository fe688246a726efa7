package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

//go:embed schema.sql
var schema string

// Repository implements logsy.Repository using PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository backed by the given pool
func New(pool *pgxpool.Pool) logsy.Repository {
	return &Repository{pool: pool}
}

// Migrate applies the embedded schema. All statements are IF NOT EXISTS, so
// the call is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// handlePostgresError translates driver errors into domain errors where a
// constraint identifies the missing or conflicting entity.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			if strings.Contains(pgErr.ConstraintName, "source_code") {
				return logsy.ErrSourceCodeNotFound
			}
			if strings.Contains(pgErr.ConstraintName, "task") {
				return logsy.ErrTaskNotFound
			}
			if strings.Contains(pgErr.ConstraintName, "object") {
				return logsy.ErrObjectNotFound
			}
			return fmt.Errorf("referenced record not found")
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Task operations

func (r *Repository) CreateTask(ctx context.Context, task *logsy.Task) error {
	query := `
		INSERT INTO task (id, status, stacktrace, source_code_id, inputs, start_time)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		task.ID, string(task.Status), task.Stacktrace, task.SourceCodeID,
		task.Inputs, task.StartTime)

	if err != nil {
		return r.handlePostgresError("create task", err)
	}

	return nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (*logsy.Task, error) {
	query := `
		SELECT id, status, stacktrace, source_code_id, inputs, start_time
		FROM task WHERE id = $1`

	task, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, logsy.ErrTaskNotFound
		}
		return nil, r.handlePostgresError("get task", err)
	}

	return task, nil
}

func (r *Repository) UpdateTask(ctx context.Context, task *logsy.Task) error {
	query := `
		UPDATE task SET status = $2, stacktrace = $3
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, task.ID, string(task.Status), task.Stacktrace)
	if err != nil {
		return r.handlePostgresError("update task", err)
	}
	if tag.RowsAffected() == 0 {
		return logsy.ErrTaskNotFound
	}

	return nil
}

func (r *Repository) ListTasks(ctx context.Context) ([]*logsy.Task, error) {
	query := `
		SELECT id, status, stacktrace, source_code_id, inputs, start_time
		FROM task ORDER BY start_time DESC, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list tasks", err)
	}
	defer rows.Close()

	var tasks []*logsy.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan task", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate task rows", err)
	}

	return tasks, nil
}

func scanTask(row pgx.Row) (*logsy.Task, error) {
	var (
		task   logsy.Task
		status string
	)
	if err := row.Scan(&task.ID, &status, &task.Stacktrace, &task.SourceCodeID,
		&task.Inputs, &task.StartTime); err != nil {
		return nil, err
	}
	task.Status = logsy.TaskStatus(status)
	if task.Inputs == nil {
		task.Inputs = map[string]any{}
	}
	return &task, nil
}

// Object operations

func (r *Repository) CreateObject(ctx context.Context, object *logsy.Object, taskID *uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return r.handlePostgresError("begin create object", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO object (id, type, path, path_type, algorithm_name, meta, preview_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		object.ID, string(object.Type), object.Path, string(object.PathType),
		object.AlgorithmName, object.Meta, object.PreviewPath, object.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create object", err)
	}

	if taskID != nil {
		_, err = tx.Exec(ctx,
			`INSERT INTO task_object (task_id, object_id) VALUES ($1, $2)`,
			*taskID, object.ID)
		if err != nil {
			return r.handlePostgresError("link object to task", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return r.handlePostgresError("commit create object", err)
	}

	return nil
}

func (r *Repository) GetObject(ctx context.Context, id uuid.UUID) (*logsy.Object, error) {
	query := `
		SELECT id, type, path, path_type, algorithm_name, meta, preview_path, created_at
		FROM object WHERE id = $1`

	object, err := scanObject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, logsy.ErrObjectNotFound
		}
		return nil, r.handlePostgresError("get object", err)
	}

	return object, nil
}

func (r *Repository) ListObjects(ctx context.Context, filter logsy.ObjectFilter) ([]*logsy.Object, error) {
	query := `
		SELECT o.id, o.type, o.path, o.path_type, o.algorithm_name, o.meta, o.preview_path, o.created_at
		FROM object o`

	var (
		conditions []string
		args       []any
	)
	if filter.TaskID != nil {
		query += ` JOIN task_object tobj ON tobj.object_id = o.id`
		args = append(args, *filter.TaskID)
		conditions = append(conditions, fmt.Sprintf("tobj.task_id = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conditions = append(conditions, fmt.Sprintf("o.type = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list objects", err)
	}
	defer rows.Close()

	var objects []*logsy.Object
	for rows.Next() {
		object, err := scanObject(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan object", err)
		}
		objects = append(objects, object)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate object rows", err)
	}

	return objects, nil
}

func scanObject(row pgx.Row) (*logsy.Object, error) {
	var (
		object   logsy.Object
		objType  string
		pathType string
	)
	if err := row.Scan(&object.ID, &objType, &object.Path, &pathType,
		&object.AlgorithmName, &object.Meta, &object.PreviewPath, &object.CreatedAt); err != nil {
		return nil, err
	}
	object.Type = logsy.ObjectType(objType)
	object.PathType = logsy.PathType(pathType)
	if object.Meta == nil {
		object.Meta = map[string]any{}
	}
	return &object, nil
}

// Group operations

func (r *Repository) CreateGroup(ctx context.Context, group *logsy.Group) error {
	query := `
		INSERT INTO groups (id, task_id, name, meta, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		group.ID, group.TaskID, group.Name, group.Meta, group.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create group", err)
	}

	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id uuid.UUID) (*logsy.Group, error) {
	query := `SELECT id, task_id, name, meta, created_at FROM groups WHERE id = $1`

	var group logsy.Group
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.TaskID, &group.Name, &group.Meta, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, logsy.ErrGroupNotFound
		}
		return nil, r.handlePostgresError("get group", err)
	}
	if group.Meta == nil {
		group.Meta = map[string]any{}
	}

	return &group, nil
}

func (r *Repository) ListGroups(ctx context.Context, taskID *uuid.UUID) ([]*logsy.Group, error) {
	query := `SELECT id, task_id, name, meta, created_at FROM groups`

	var args []any
	if taskID != nil {
		query += ` WHERE task_id = $1`
		args = append(args, *taskID)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list groups", err)
	}
	defer rows.Close()

	var groups []*logsy.Group
	for rows.Next() {
		var group logsy.Group
		if err := rows.Scan(&group.ID, &group.TaskID, &group.Name, &group.Meta, &group.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan group", err)
		}
		if group.Meta == nil {
			group.Meta = map[string]any{}
		}
		groups = append(groups, &group)
	}

	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate group rows", err)
	}

	return groups, nil
}

// Source code operations

func (r *Repository) CreateSourceCode(ctx context.Context, sourceCode *logsy.SourceCode) error {
	query := `INSERT INTO source_code (id, entry_point, created_at) VALUES ($1, $2, $3)`

	_, err := r.pool.Exec(ctx, query, sourceCode.ID, sourceCode.EntryPoint, sourceCode.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create source code", err)
	}

	return nil
}

func (r *Repository) GetSourceCode(ctx context.Context, id uuid.UUID) (*logsy.SourceCode, error) {
	query := `SELECT id, entry_point, created_at FROM source_code WHERE id = $1`

	var sourceCode logsy.SourceCode
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sourceCode.ID, &sourceCode.EntryPoint, &sourceCode.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, logsy.ErrSourceCodeNotFound
		}
		return nil, r.handlePostgresError("get source code", err)
	}

	return &sourceCode, nil
}
