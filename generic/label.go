package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// MONTH LABELS - "<month name> <year>", the archive's human key
// =============================================================================

// Month names are nominative lowercase, matching how closed months have
// always been labelled ("январь 2026").
var ruMonths = [12]string{
	"январь", "февраль", "март", "апрель", "май", "июнь",
	"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
}

// English names are accepted on parse so labels typed by admins in either
// language resolve to the same month.
var enMonths = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// MonthLabel formats the label of a calendar month.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%s %d", ruMonths[month-1], year)
}

// LabelOf returns the label of the month containing the period's start.
func LabelOf(p Period) string {
	return MonthLabel(p.Start.Year(), p.Start.Month())
}

// ParseMonthLabel reconstructs the calendar month named by a label. The month
// token may be any prefix of a month name ("янв 2026"), case-insensitive, and
// a "г." suffix on the year, attached or not, is ignored.
func ParseMonthLabel(label string) (Period, error) {
	fields := strings.Fields(strings.ToLower(label))
	if len(fields) < 2 {
		return Period{}, &LabelError{Label: label, Reason: "expected \"<month> <year>\""}
	}

	month, ok := lookupMonth(fields[0])
	if !ok {
		return Period{}, &LabelError{Label: label, Reason: "unknown month " + strconv.Quote(fields[0])}
	}

	year, err := strconv.Atoi(strings.TrimSuffix(strings.TrimRight(fields[1], "."), "г"))
	if err != nil || year < 1 {
		return Period{}, &LabelError{Label: label, Reason: "invalid year " + strconv.Quote(fields[1])}
	}

	return MonthPeriod(year, month), nil
}

func lookupMonth(token string) (time.Month, bool) {
	for _, names := range [][12]string{ruMonths, enMonths} {
		for i, name := range names {
			if strings.HasPrefix(name, token) {
				return time.Month(i + 1), true
			}
		}
	}
	return 0, false
}

// LabelMatches reports whether query is a case-insensitive substring of the
// label. Empty queries never match.
func LabelMatches(label, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	return strings.Contains(strings.ToLower(label), q)
}

// SameLabel compares two labels case-insensitively after trimming.
func SameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
