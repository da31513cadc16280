package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// PERIOD TESTS
// =============================================================================

func TestMonthOf_SpansWholeMonth(t *testing.T) {
	p := generic.MonthOf(generic.NewTimePoint(2024, time.February, 17))

	assert.Equal(t, "2024-02-01", p.Start.String())
	assert.Equal(t, "2024-02-29", p.End.String(), "leap year February")
	assert.Len(t, p.Days(), 29)
	assert.True(t, p.IsMonth())
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	p := generic.MonthPeriod(2026, time.January)

	assert.True(t, p.ContainsDate("2026-01-01"))
	assert.True(t, p.ContainsDate("2026-01-31"))
	assert.False(t, p.ContainsDate("2025-12-31"))
	assert.False(t, p.ContainsDate("2026-02-01"))
	assert.False(t, p.ContainsDate("not-a-date"), "unparseable dates are outside every period")
}

func TestNewPeriod_RejectsEndBeforeStart(t *testing.T) {
	_, err := generic.NewPeriod(
		generic.NewTimePoint(2026, time.March, 2),
		generic.NewTimePoint(2026, time.March, 1),
	)

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidPeriod))
	assert.True(t, generic.IsClientError(err))
}

func TestPeriod_NextAndPreviousMonth(t *testing.T) {
	dec := generic.MonthPeriod(2025, time.December)

	assert.Equal(t, generic.MonthPeriod(2026, time.January), dec.NextMonth())
	assert.Equal(t, generic.MonthPeriod(2025, time.November), dec.PreviousMonth())
}

func TestISOWeek_YearBoundary(t *testing.T) {
	// 2027-01-01 is a Friday: it belongs to week 53 of 2026.
	wk := generic.MustParseDate("2027-01-01").ISOWeek()
	assert.Equal(t, generic.WeekKey{Year: 2026, Week: 53}, wk)

	// Monday and Sunday of the same ISO week share a bucket.
	assert.Equal(t,
		generic.MustParseDate("2026-01-05").ISOWeek(),
		generic.MustParseDate("2026-01-11").ISOWeek())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := generic.ParseDate("2026/01/05")

	var dateErr *generic.DateError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, "2026/01/05", dateErr.Value)
	assert.True(t, errors.Is(err, generic.ErrInvalidDate))
}

func TestMonthsBetween(t *testing.T) {
	a := generic.MustParseDate("2025-09-30")
	b := generic.MustParseDate("2026-01-01")

	assert.Equal(t, 4, generic.MonthsBetween(a, b))
	assert.Equal(t, -4, generic.MonthsBetween(b, a))
}
