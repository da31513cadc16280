package archive

import (
	"errors"
	"fmt"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// ARCHIVE LIFECYCLE ERRORS
// =============================================================================

var (
	// ErrArchiveExists is returned when a month close would create a
	// second archive for the same month.
	ErrArchiveExists = errors.New("month already archived")

	// ErrNoDetail is returned when opening an archive that carries no
	// rawData (written before per-day detail was archived).
	ErrNoDetail = errors.New("archive has no detail available")

	// ErrNotInArchive is returned by archive-only session operations while
	// the session is live.
	ErrNotInArchive = errors.New("session is not viewing an archive")

	// ErrOutsideArchiveMonth is returned when an archive edit is dated
	// outside the archived month.
	ErrOutsideArchiveMonth = errors.New("date outside the archived month")

	// ErrNotAdministrator is returned by administrative archive operations
	// invoked by a non-administrator.
	ErrNotAdministrator = errors.New("administrator required")
)

// ExistsError names the archive that already covers a month.
type ExistsError struct {
	Label string
	ID    string
}

func (e *ExistsError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("month %q already archived", e.Label)
	}
	return fmt.Sprintf("month %q already archived as %s", e.Label, e.ID)
}

func (e *ExistsError) Unwrap() []error { return []error{ErrArchiveExists, generic.ErrDuplicateLabel} }

// NoDetailError names the archive that cannot be opened.
type NoDetailError struct {
	ID    string
	Label string
}

func (e *NoDetailError) Error() string {
	return fmt.Sprintf("archive %q (%s) has no detail available", e.Label, e.ID)
}

func (e *NoDetailError) Unwrap() error { return ErrNoDetail }
