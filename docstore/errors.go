// ABOUTME: Error taxonomy for the data layer
// ABOUTME: Sentinel errors plus typed duplicate and validation errors
package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnauthorized is returned when a document exists but belongs to a
	// different tenant. Callers surface it as not-found to avoid confirming
	// cross-tenant existence.
	ErrUnauthorized = errors.New("document belongs to another tenant")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("document store is closed")
)

// DuplicateError reports a unique-field collision found by the pre-insert
// check. It carries the conflicting document so callers can show it.
type DuplicateError struct {
	Field    string
	Value    any
	Existing Document
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for %q: %v", e.Field, e.Value)
}

// ExistingID returns the id of the conflicting document, if present.
func (e *DuplicateError) ExistingID() string {
	if e.Existing == nil {
		return ""
	}
	id, _ := e.Existing["id"].(string)
	return id
}

// ValidationError reports one malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var d *DuplicateError
	return errors.As(err, &d)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
