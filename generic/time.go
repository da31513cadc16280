package generic

import (
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - Calendar day abstraction (reports are keyed by day)
// =============================================================================

// ISODate is the wire format of every report date: YYYY-MM-DD.
const ISODate = "2006-01-02"

// TimePoint is a calendar day in UTC. Reports never carry a time of day, so
// the day is the only granularity this engine needs.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day, keeping t's wall-clock date.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Surrounding whitespace is ignored.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return TimePoint{}, &DateError{Value: s, Err: err}
	}
	return FromTime(t), nil
}

// MustParseDate is ParseDate for literals in tests and presets.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// String returns the ISO date, the form used as a record key.
func (tp TimePoint) String() string { return tp.Time.Format(ISODate) }

// MarshalText encodes the day as YYYY-MM-DD.
func (tp TimePoint) MarshalText() ([]byte, error) { return []byte(tp.String()), nil }

// UnmarshalText decodes a YYYY-MM-DD day.
func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// ISO WEEKS - Weekly bonus buckets
// =============================================================================

// WeekKey identifies an ISO-8601 week (Monday start, Thursday-anchored year).
type WeekKey struct {
	Year int
	Week int
}

// ISOWeek returns the ISO week containing the day. The week belongs to the
// year that contains its Thursday, so Jan 1 may fall in week 52/53 of the
// previous year.
func (tp TimePoint) ISOWeek() WeekKey {
	y, w := tp.Time.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "today". Everything period-related derives from it so that
// rollover logic can be tested without touching the system time.
type Clock interface {
	Today() TimePoint
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Today() TimePoint { return FromTime(time.Now()) }

// FixedClock always returns the same day.
type FixedClock struct {
	Day TimePoint
}

func (c FixedClock) Today() TimePoint { return c.Day }

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month+1, 1).AddDays(-1)
}

// MonthsBetween counts whole calendar-month steps from a to b, ignoring days.
func MonthsBetween(a, b TimePoint) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
