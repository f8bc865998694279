// Package poolerr defines the small sentinel error types shared across
// poolkeeper's subsystems, per the NotFound/InvalidInput/Conflict/Fatal
// taxonomy: constructed close to the failure, wrapped with fmt.Errorf at
// call sites, and inspected with errors.As at the HTTP boundary.
package poolerr

import "fmt"

// NotFoundError means a store lookup missed.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NotFound constructs a NotFoundError for the given entity kind and id.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidInputError means the request body or driver validation rejected
// the supplied values.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// InvalidInput constructs an InvalidInputError.
func InvalidInput(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// ConflictKind distinguishes the two conflict reasons the spec names.
type ConflictKind string

const (
	ConflictAllocated  ConflictKind = "ResourceAllocated"
	ConflictProcessing ConflictKind = "ResourceProcessing"
)

// ConflictError means allocated or processing prevented the requested
// transition.
type ConflictError struct {
	Kind     ConflictKind
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: resource %s", e.Kind, e.Resource)
}

// Conflict constructs a ConflictError.
func Conflict(kind ConflictKind, resourceID string) error {
	return &ConflictError{Kind: kind, Resource: resourceID}
}
