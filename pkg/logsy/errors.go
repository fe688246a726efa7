package logsy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrTaskNotFound indicates a task was not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrObjectNotFound indicates an object was not found
	ErrObjectNotFound = errors.New("object not found")

	// ErrGroupNotFound indicates a group was not found
	ErrGroupNotFound = errors.New("group not found")

	// ErrSourceCodeNotFound indicates a source code record was not found
	ErrSourceCodeNotFound = errors.New("source code not found")

	// ErrInvalidTaskStatus indicates a status outside the five-state enumeration
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidObjectType indicates an unknown object type
	ErrInvalidObjectType = errors.New("invalid object type")

	// ErrInvalidMeta indicates meta text that does not parse as a JSON object
	ErrInvalidMeta = errors.New("meta must be a JSON object")

	// ErrInvalidInputs indicates task inputs that are not a JSON object
	ErrInvalidInputs = errors.New("inputs must be a JSON object")

	// ErrObjectSourceRequired indicates a submission with neither file nor path
	ErrObjectSourceRequired = errors.New("path or file required")

	// ErrObjectSourceConflict indicates a submission with both file and path
	ErrObjectSourceConflict = errors.New("path and file are mutually exclusive")

	// ErrStacktraceWithoutAbort indicates a stacktrace on a non-aborted task
	ErrStacktraceWithoutAbort = errors.New("stacktrace is only allowed on aborted tasks")

	// ErrAbortWithoutStacktrace indicates an aborted status with no stacktrace
	ErrAbortWithoutStacktrace = errors.New("aborted status requires a stacktrace")

	// ErrEmptySourceCode indicates a source code upload with no content
	ErrEmptySourceCode = errors.New("source code is required")

	// ErrBlobNotFound indicates a storage key with no stored bytes
	ErrBlobNotFound = errors.New("blob not found")

	// ErrObjectNotServed indicates an object whose bytes the service does not own
	ErrObjectNotServed = errors.New("object is not service-managed")
)

// TaskError represents an error related to task operations
type TaskError struct {
	TaskID uuid.UUID
	Op     string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task operation %s failed for task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// ObjectError represents an error related to object operations
type ObjectError struct {
	ObjectID uuid.UUID
	Op       string
	Err      error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object operation %s failed for object %s: %v", e.Op, e.ObjectID, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// TilingError reports a failed tiling call during geotiff ingestion. The
// submission it belongs to is discarded in full.
type TilingError struct {
	Path string
	Err  error
}

func (e *TilingError) Error() string {
	return fmt.Sprintf("tiling failed for %s: %v", e.Path, e.Err)
}

func (e *TilingError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrObjectNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrSourceCodeNotFound) ||
		errors.Is(err, ErrBlobNotFound)
}

// IsValidation reports whether err indicates a malformed or inconsistent
// request. Validation failures are client errors and are never retried.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidTaskStatus,
		ErrInvalidObjectType,
		ErrInvalidMeta,
		ErrInvalidInputs,
		ErrObjectSourceRequired,
		ErrObjectSourceConflict,
		ErrStacktraceWithoutAbort,
		ErrAbortWithoutStacktrace,
		ErrEmptySourceCode,
		ErrObjectNotServed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTiling reports whether err originates from the tiling collaborator.
func IsTiling(err error) bool {
	var te *TilingError
	return errors.As(err, &te)
}
