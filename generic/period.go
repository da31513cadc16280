package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The unit every aggregation is computed over
// =============================================================================

// Period is an inclusive [Start, End] range of days, normally one calendar
// month. Metrics and salaries are ALWAYS computed for a period, never for an
// implicit "now".
type Period struct {
	Start TimePoint `json:"startDate"`
	End   TimePoint `json:"endDate"`
}

// MonthOf returns the calendar month containing the day.
func MonthOf(day TimePoint) Period {
	return MonthPeriod(day.Year(), day.Month())
}

// MonthPeriod returns the first and last day of the given month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// ContainsDate is Contains for an ISO date string. Unparseable dates are
// outside every period.
func (p Period) ContainsDate(date string) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	return p.Contains(t)
}

// Days returns every day in the period in order.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// IsZero reports whether the period was never set.
func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// IsMonth reports whether the period spans exactly one calendar month.
func (p Period) IsMonth() bool {
	return p == MonthOf(p.Start)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextMonth returns the calendar month after the one containing Start.
func (p Period) NextMonth() Period {
	return MonthOf(StartOfMonth(p.Start.Year(), p.Start.Month()).AddMonths(1))
}

// PreviousMonth returns the calendar month before the one containing Start.
func (p Period) PreviousMonth() Period {
	return MonthOf(StartOfMonth(p.Start.Year(), p.Start.Month()).AddMonths(-1))
}
