// Package planerr defines the typed error taxonomy the planning engine and
// its HTTP layer share, so status-code mapping never relies on string
// matching.
package planerr

import (
	"fmt"
	"net/http"
)

// ValidationError signals bad input: a missing field, an unknown id, a
// negative quantity. Nothing mutates when this is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }

// PreconditionError signals a structurally invalid request that fails fast
// before any scheduling work starts: a multi-step BOM with no dependencies,
// an inverted planning window, a demand entry with no BOM, accepting a
// scenario that doesn't belong to its run.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) HTTPStatus() int { return http.StatusBadRequest }

// ConflictError signals a uniqueness violation: a duplicate certification, a
// duplicate employee id, an assignment already present on a block.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) HTTPStatus() int { return http.StatusConflict }

// ScheduleInfeasibleError is fatal mid-run: the stuck-check detected a
// circular dependency. The run is abandoned and no scenario is persisted.
type ScheduleInfeasibleError struct {
	Message string
}

func (e *ScheduleInfeasibleError) Error() string { return e.Message }

func (e *ScheduleInfeasibleError) HTTPStatus() int { return http.StatusUnprocessableEntity }

// SchedulePartialWarning is non-fatal: no qualified worker for a step-batch,
// beyond-planning-horizon, or max_iterations reached. Collected in a
// scenario's warnings[] rather than returned as a request error, but
// modeled as a typed value so callers can distinguish warning kinds.
type SchedulePartialWarning struct {
	Message string
}

func (e *SchedulePartialWarning) Error() string { return e.Message }

// IOError wraps a repository failure. Retryable marks whether the
// repository boundary should retry (transient faults) before surfacing a
// 500 to the caller.
type IOError struct {
	Err       error
	Retryable bool
}

func (e *IOError) Error() string { return fmt.Sprintf("repository error: %v", e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) HTTPStatus() int { return http.StatusInternalServerError }

// HTTPStatuser is implemented by every error kind above; the API layer uses
// it to pick a response status without inspecting error strings.
type HTTPStatuser interface {
	HTTPStatus() int
}

// StatusFor returns the HTTP status for any error in the taxonomy, or 500
// for anything else.
func StatusFor(err error) int {
	if s, ok := err.(HTTPStatuser); ok {
		return s.HTTPStatus()
	}
	return http.StatusInternalServerError
}
