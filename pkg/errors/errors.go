package errors

import (
	"errors"
	"fmt"
)

// Error types shared by all write surfaces (REST, MCP tools, websocket sync).
type (
	// ValidationError represents a malformed or incomplete element payload.
	// The mutation it belongs to is never applied.
	ValidationError struct {
		Field   string
		Message string
	}

	// NotFoundError represents a lookup of an unknown session or element id.
	NotFoundError struct {
		Kind string // "session" or "element"
		ID   string
	}

	// CollaboratorUnavailableError represents a failure of an external
	// collaborator (screenshot export, mermaid conversion). The session and
	// its elements remain intact and the operation may be retried.
	CollaboratorUnavailableError struct {
		Collaborator string
		Err          error
	}
)

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *CollaboratorUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s collaborator unavailable: %v", e.Collaborator, e.Err)
	}
	return fmt.Sprintf("%s collaborator unavailable", e.Collaborator)
}

func (e *CollaboratorUnavailableError) Unwrap() error {
	return e.Err
}

// NewValidation builds a ValidationError for a single field.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewSessionNotFound builds a NotFoundError for a session id.
func NewSessionNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "session", ID: id}
}

// NewElementNotFound builds a NotFoundError for an element id.
func NewElementNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "element", ID: id}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsCollaboratorUnavailable reports whether err is (or wraps) a
// CollaboratorUnavailableError.
func IsCollaboratorUnavailable(err error) bool {
	var cu *CollaboratorUnavailableError
	return errors.As(err, &cu)
}
