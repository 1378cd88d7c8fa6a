// Package errs defines the error kinds the scheduling core surfaces to
// callers, and their mapping to HTTP status codes. Validation errors are
// raised before any write; storage failures inside a transaction roll the
// whole transaction back and reach callers as plain wrapped errors.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CycleError reports one or more dependency cycles in a project's task graph.
// A non-empty cycle set is fatal for scheduling.
type CycleError struct {
	ProjectID string
	Cycles    [][]string
}

func (e *CycleError) Error() string {
	if len(e.Cycles) == 0 {
		return "dependency cycle detected"
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycles[0], " -> "))
}

// Members returns the distinct task ids involved in any detected cycle.
func (e *CycleError) Members() []string {
	seen := make(map[string]bool)
	var out []string
	for _, cycle := range e.Cycles {
		for _, id := range cycle {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// NotFoundError reports an unknown resource (project, task, node).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// PermissionError reports an actor lacking the capability or discipline
// scope for an action.
type PermissionError struct {
	Actor  string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("actor %s is not permitted to %s", e.Actor, e.Action)
}

// ValidationError reports malformed input. Msg is surfaced verbatim to the
// caller (e.g. "Invalid anchor_date format").
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConflictError reports a storage-level uniqueness violation.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error { return &NotFoundError{Resource: resource, ID: id} }

// Denied builds a PermissionError.
func Denied(actor, action string) error { return &PermissionError{Actor: actor, Action: action} }

// Invalid builds a ValidationError with a caller-facing message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a ConflictError.
func Conflict(resource, id string) error { return &ConflictError{Resource: resource, ID: id} }

// HTTPStatus maps an error to the status code the API layer should return.
// Unrecognized errors map to 500.
func HTTPStatus(err error) int {
	var (
		cycleErr      *CycleError
		notFoundErr   *NotFoundError
		permErr       *PermissionError
		validationErr *ValidationError
		conflictErr   *ConflictError
	)
	switch {
	case errors.As(err, &cycleErr), errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &permErr):
		return http.StatusForbidden
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AsCycle extracts a CycleError from an error chain, or nil.
func AsCycle(err error) *CycleError {
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return cycleErr
	}
	return nil
}
