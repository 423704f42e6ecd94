// Package errs holds the error taxonomy the HTTP layer maps onto status
// codes. Services return these; infrastructure errors pass through untouched
// and surface as generic 500s.
package errs

import (
	"errors"
	"fmt"
)

// NotFoundError covers both missing entities and entities the requester is
// not allowed to see. Authorization failures on messages deliberately use
// this instead of a forbidden error so existence is not leaked.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error { return &NotFoundError{Resource: resource, ID: id} }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError: the request was well-formed but cannot be applied against
// current state (insufficient stock, duplicate unique field). The caller must
// adjust and resubmit.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func Conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

func Invalid(field, reason string) error {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func InvalidFields(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
