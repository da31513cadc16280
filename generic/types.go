/*
Package generic provides the domain-agnostic core of the payroll engine.

PURPOSE:
  This package contains the building blocks every payroll component shares:
  calendar days and month periods, month labels, safe arithmetic on money
  and ratios, input clamping, and the document store contract. It knows
  nothing about managers, experts or archives.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal, never float64
  - Percent / Ratio: zero-denominator safe division
  - Identifiers: Collection names and document keys

DESIGN PRINCIPLES:
  1. Precision: money and rates use decimal.Decimal
  2. Totality: every division is defined (0 when the denominator is 0)
  3. Period-scoped: nothing reads "now" implicitly, see Clock

USAGE:
  conv := generic.PercentInt(done, set)              // 2 decimals, 0 if set == 0
  plan := generic.Percent(revenue, expert.MonthPlan)

SEE ALSO:
  - period.go: Period and month arithmetic
  - clamp.go: Non-negative parsing of user input
  - store.go: Document persistence interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY & RATIOS
// =============================================================================

// RatioPlaces is the precision of every conversion rate and plan percent.
const RatioPlaces = 2

var hundred = decimal.NewFromInt(100)

// Hundred returns the decimal 100.
func Hundred() decimal.Decimal { return hundred }

// MustParseDecimal parses s or returns zero.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Percent returns num / den * 100 rounded to RatioPlaces, or 0 when den is
// zero or negative. It never produces NaN or Inf.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Mul(hundred).Div(den).Round(RatioPlaces)
}

// PercentInt is Percent for counters.
func PercentInt(num, den int) decimal.Decimal {
	return Percent(decimal.NewFromInt(int64(num)), decimal.NewFromInt(int64(den)))
}

// Ratio returns num / den rounded to RatioPlaces, or 0 when den is not
// positive. Used for cost-per-X metrics.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den).Round(RatioPlaces)
}

// RatioInt is Ratio with a counter denominator.
func RatioInt(num decimal.Decimal, den int) decimal.Decimal {
	return Ratio(num, decimal.NewFromInt(int64(den)))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Collection names a persisted record collection. The names are the logical
// layout of the persisted state and double as remote mirror keys.
type Collection string

const (
	CollManagers         Collection = "managers"
	CollExperts          Collection = "experts"
	CollMarketers        Collection = "marketers"
	CollManagerReports   Collection = "managerReports"
	CollExpertSales      Collection = "expertSales"
	CollMarketingReports Collection = "marketingReports"
	CollDecomposition    Collection = "decomposition"
)

// Collections lists every document collection in a stable order.
func Collections() []Collection {
	return []Collection{
		CollManagers, CollExperts, CollMarketers,
		CollManagerReports, CollExpertSales, CollMarketingReports,
		CollDecomposition,
	}
}
