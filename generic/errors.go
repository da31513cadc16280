/*
errors.go - Centralized error types for the generic core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Lookup errors - Missing documents, archives, entities
  2. Validation errors - Malformed periods, dates, month labels
  3. Store errors - Uniqueness violations, closed stores

  Note that malformed NUMERIC input is not an error anywhere in this
  module: it is clamped (see clamp.go).

USAGE:
  if errors.Is(err, generic.ErrDuplicateLabel) {
      // an archive for this month already exists
  }

SEE ALSO:
  - store.go: Uses these errors
  - archive/errors.go: Archive lifecycle errors wrapping these
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a document, archive or entity is missing.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateLabel is returned when an archive would reuse the month
	// label of an existing archive.
	ErrDuplicateLabel = errors.New("duplicate archive label")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidDate is returned for dates that are not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidLabel is returned when a month label cannot be parsed.
	ErrInvalidLabel = errors.New("invalid month label")

	// ErrStoreClosed is returned by stores used after Close.
	ErrStoreClosed = errors.New("store closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateError reports an unparseable report date.
type DateError struct {
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", e.Value)
}

func (e *DateError) Unwrap() []error { return []error{ErrInvalidDate, e.Err} }

// LabelError reports an unparseable month label.
type LabelError struct {
	Label  string
	Reason string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("invalid month label %q: %s", e.Label, e.Reason)
}

func (e *LabelError) Unwrap() error { return ErrInvalidLabel }

// NotFoundError names what was missing.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidLabel)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateLabel)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
