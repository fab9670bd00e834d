/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All engine error types in one place. Callers (the HTTP layer, the CLI)
  map these onto their own surfaces with errors.Is / the helpers below.

ERROR CATEGORIES:
  1. Not-found errors  - unknown employee/recommendation, missing salary row
  2. Validation errors - grade or step off the CONRAISS ladder
  3. State errors      - acting on a terminal recommendation, promoting
                         past the top of scale
  4. Concurrency       - compare-and-set conflict on an employee mutation

Degraded-but-non-fatal conditions (a salary table inversion during step
allocation) are NOT errors: they surface as a flag on the result and are
logged for human review.

SEE ALSO:
  - steps.go: uses ErrSalaryNotFound and the degraded flag
  - approval.go: uses StateError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRecommendationNotFound is returned when a recommendation id is unknown.
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrSalaryNotFound is returned when no active salary row exists for a
	// (grade, step) pair.
	ErrSalaryNotFound = errors.New("no active salary row for grade/step")

	// ErrVacancyNotFound is returned when no active vacancy configuration
	// exists for a (grade, cycle) pair.
	ErrVacancyNotFound = errors.New("vacancy configuration not found")

	// ErrInvalidGrade is returned for grades outside the CONRAISS scale.
	ErrInvalidGrade = errors.New("grade outside CONRAISS scale")

	// ErrInvalidStep is returned for steps beyond the grade's ceiling.
	ErrInvalidStep = errors.New("step outside grade ladder")

	// ErrMissingGradeStep is returned when an operation needs an employee's
	// grade and step but one of them is unset.
	ErrMissingGradeStep = errors.New("employee has no grade/step information")

	// ErrInvalidState is returned when a workflow transition is not allowed
	// from the recommendation's current status.
	ErrInvalidState = errors.New("invalid recommendation state")

	// ErrConcurrentModification is returned when compare-and-set detects
	// a conflicting employee mutation.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// GradeStepError reports the offending (grade, step) pair for validation
// and salary lookup failures.
type GradeStepError struct {
	Grade int
	Step  int
	Cause error
}

func (e *GradeStepError) Error() string {
	return fmt.Sprintf("grade %d step %d: %v", e.Grade, e.Step, e.Cause)
}

func (e *GradeStepError) Unwrap() error { return e.Cause }

// StateError reports an illegal workflow transition.
type StateError struct {
	RecommendationID RecommendationID
	Status           RecommendationStatus
	Wanted           RecommendationStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("recommendation %s is %s, expected %s",
		e.RecommendationID, e.Status, e.Wanted)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRecommendationNotFound) ||
		errors.Is(err, ErrSalaryNotFound) ||
		errors.Is(err, ErrVacancyNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// or an illegal state transition, as opposed to a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidGrade) ||
		errors.Is(err, ErrInvalidStep) ||
		errors.Is(err, ErrMissingGradeStep) ||
		errors.Is(err, ErrInvalidState)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
