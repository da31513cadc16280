/*
Package salary is the Salary Engine: per-role compensation formulas.

PURPOSE:
  Computes one entity's pay for one Scope. Every formula is a pure
  function of the entity, its reports in the period, and (for the best
  of month bonus) its siblings' reports in the same period. Nothing is
  cached between calls.

FORMULAS:
  Manager  = base + piece + weekly + bestOfMonth - penalties
    base      promoted: PromotedFix
              otherwise: Hard + disciplinedDays/reportedDays * MaxDiscipline
    piece     completed appointments * BonusPerDone
    weekly    per ISO week, the highest ladder tier whose threshold <= sum
    penalties days violating the daily norm * PenaltyPerDay

  Expert   = Hard + revenue * rate(planPercent) + bestOfMonth
    rate      first tier with planPercent < Below (strict), else last tier

  Marketer = base + budget * percent(ROI) / 100
    ROI       organisation revenueUSD / expenses * 100 (shared by everyone)
    percent   first ROI tier (descending) with threshold <= ROI, else 0

BEST OF MONTH:
  Exactly one winner per role: the strictly highest primary metric, which
  must be positive. Equal maxima go to the lowest entity ID.

SEE ALSO:
  - config.go: Rates and tier tables (DefaultConfig)
  - factory/: Loads a Config from a JSON plan
*/
package salary

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds every rate and tier table.
type Config struct {
	Manager   ManagerConfig
	Expert    ExpertConfig
	Marketer  MarketerConfig
	Promotion PromotionConfig
}

type ManagerConfig struct {
	HardSalary     decimal.Decimal
	MaxDiscipline  decimal.Decimal
	BonusPerDone   decimal.Decimal
	PenaltyPerDay  decimal.Decimal
	BestMonthBonus decimal.Decimal
	PromotedFix    decimal.Decimal

	// WeeklyLadder is sorted by Threshold, highest first.
	WeeklyLadder []WeeklyTier
	Norms        DailyNorms
}

// WeeklyTier pays Bonus for a week with at least Threshold completed
// appointments.
type WeeklyTier struct {
	Threshold int
	Bonus     decimal.Decimal
}

// DailyNorms are the per-day requirements a manager's report must meet.
type DailyNorms struct {
	MinCalls   int
	MaxCalls   int
	MinMinutes int
}

type ExpertConfig struct {
	HardSalary     decimal.Decimal
	BestMonthBonus decimal.Decimal

	// Tiers are sorted by Below ascending. A nil Below is unbounded and
	// must be last.
	Tiers []CommissionTier
}

// CommissionTier applies Rate when plan percent is strictly below Below.
type CommissionTier struct {
	Name  string
	Below *decimal.Decimal
	Rate  decimal.Decimal
}

type MarketerConfig struct {
	DefaultBase decimal.Decimal

	// ROITable is sorted by MinROI, highest first.
	ROITable []ROITier
}

// ROITier pays Percent of the budget when ROI >= MinROI.
type ROITier struct {
	MinROI  decimal.Decimal
	Percent decimal.Decimal
}

// PromotionConfig gates the promoted fix.
type PromotionConfig struct {
	MinTenureMonths int
	MinBestMonths   int
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func bound(n int64) *decimal.Decimal {
	v := decimal.NewFromInt(n)
	return &v
}

// DefaultConfig returns the organisation's standard rates.
func DefaultConfig() Config {
	return Config{
		Manager: ManagerConfig{
			HardSalary:     money(1_000_000),
			MaxDiscipline:  money(1_000_000),
			BonusPerDone:   money(100_000),
			PenaltyPerDay:  money(100_000),
			BestMonthBonus: money(600_000),
			PromotedFix:    money(3_000_000),
			WeeklyLadder: []WeeklyTier{
				{Threshold: 25, Bonus: money(300_000)},
				{Threshold: 23, Bonus: money(200_000)},
				{Threshold: 20, Bonus: money(100_000)},
			},
			Norms: DailyNorms{MinCalls: 80, MaxCalls: 120, MinMinutes: 90},
		},
		Expert: ExpertConfig{
			HardSalary:     money(2_000_000),
			BestMonthBonus: money(1_000_000),
			Tiers: []CommissionTier{
				{Name: "LOW", Below: bound(90), Rate: decimal.RequireFromString("0.03")},
				{Name: "MID", Below: bound(150), Rate: decimal.RequireFromString("0.05")},
				{Name: "HIGH", Rate: decimal.RequireFromString("0.07")},
			},
		},
		Marketer: MarketerConfig{
			DefaultBase: money(200),
			ROITable: []ROITier{
				{MinROI: money(1400), Percent: money(36)},
				{MinROI: money(1300), Percent: money(33)},
				{MinROI: money(1200), Percent: money(30)},
				{MinROI: money(1100), Percent: money(27)},
				{MinROI: money(1000), Percent: money(24)},
				{MinROI: money(900), Percent: money(21)},
				{MinROI: money(800), Percent: money(18)},
				{MinROI: money(700), Percent: money(15)},
				{MinROI: money(600), Percent: money(12)},
				{MinROI: money(500), Percent: money(9)},
				{MinROI: money(400), Percent: money(7)},
				{MinROI: money(300), Percent: money(5)},
				{MinROI: money(200), Percent: money(4)},
			},
		},
		Promotion: PromotionConfig{MinTenureMonths: 4, MinBestMonths: 2},
	}
}

// =============================================================================
// TIER LOOKUPS
// =============================================================================

// WeeklyBonus returns the single ladder tier earned by a week's completed
// appointments, or zero below the lowest threshold.
func (c ManagerConfig) WeeklyBonus(done int) decimal.Decimal {
	for _, tier := range c.WeeklyLadder {
		if done >= tier.Threshold {
			return tier.Bonus
		}
	}
	return decimal.Zero
}

// Tier returns the commission tier for a plan percent.
func (c ExpertConfig) Tier(planPercent decimal.Decimal) CommissionTier {
	for _, tier := range c.Tiers {
		if tier.Below == nil || planPercent.LessThan(*tier.Below) {
			return tier
		}
	}
	if len(c.Tiers) == 0 {
		return CommissionTier{Rate: decimal.Zero}
	}
	return c.Tiers[len(c.Tiers)-1]
}

// BonusPercent returns the ROI table percent, or zero below every tier.
func (c MarketerConfig) BonusPercent(roi decimal.Decimal) decimal.Decimal {
	for _, tier := range c.ROITable {
		if roi.GreaterThanOrEqual(tier.MinROI) {
			return tier.Percent
		}
	}
	return decimal.Zero
}
