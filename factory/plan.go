/*
Package factory provides JSON to Go salary plan conversion.

PURPOSE:
  Converts a JSON salary plan into a salary.Config. This enables rate and
  tier changes without code changes: finance edits the plan file and the
  server picks it up on start.

JSON SCHEMA:
  {
    "name": "standard",
    "manager": {
      "hard_salary": 1000000,
      "max_discipline": 1000000,
      "bonus_per_done": 100000,
      "penalty_per_day": 100000,
      "best_month_bonus": 600000,
      "promoted_fix": 3000000,
      "weekly_ladder": [{"threshold": 25, "bonus": 300000}, ...],
      "norms": {"min_calls": 80, "max_calls": 120, "min_minutes": 90}
    },
    "expert": {
      "hard_salary": 2000000,
      "best_month_bonus": 1000000,
      "commission_tiers": [
        {"name": "LOW", "below": 90, "rate": 0.03},
        {"name": "MID", "below": 150, "rate": 0.05},
        {"name": "HIGH", "rate": 0.07}
      ]
    },
    "marketer": {
      "default_base": 200,
      "roi_table": [{"min_roi": 1400, "percent": 36}, ...]
    },
    "promotion": {"min_tenure_months": 4, "min_best_months": 2}
  }

KEY FEATURES:
  - Every field is optional: absent fields keep salary.DefaultConfig()
  - Tables are sorted into the order the engine scans them
  - Malformed tables (two unbounded commission tiers, negative rates)
    are rejected with *PlanError

USAGE:
  f := factory.NewPlanFactory()
  cfg, err := f.LoadFile("plan.json")
  calc := salary.New(cfg)

SEE ALSO:
  - salary/config.go: Config and DefaultConfig
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/salary"
)

// ErrInvalidPlan is wrapped by every PlanError.
var ErrInvalidPlan = errors.New("invalid salary plan")

// PlanError names the offending plan field.
type PlanError struct {
	Field  string
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("salary plan %s: %s", e.Field, e.Reason)
}

func (e *PlanError) Unwrap() error { return ErrInvalidPlan }

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a salary plan.
type PlanJSON struct {
	Name      string         `json:"name,omitempty"`
	Manager   *ManagerJSON   `json:"manager,omitempty"`
	Expert    *ExpertJSON    `json:"expert,omitempty"`
	Marketer  *MarketerJSON  `json:"marketer,omitempty"`
	Promotion *PromotionJSON `json:"promotion,omitempty"`
}

type ManagerJSON struct {
	HardSalary     *decimal.Decimal `json:"hard_salary,omitempty"`
	MaxDiscipline  *decimal.Decimal `json:"max_discipline,omitempty"`
	BonusPerDone   *decimal.Decimal `json:"bonus_per_done,omitempty"`
	PenaltyPerDay  *decimal.Decimal `json:"penalty_per_day,omitempty"`
	BestMonthBonus *decimal.Decimal `json:"best_month_bonus,omitempty"`
	PromotedFix    *decimal.Decimal `json:"promoted_fix,omitempty"`
	WeeklyLadder   []WeeklyTierJSON `json:"weekly_ladder,omitempty"`
	Norms          *NormsJSON       `json:"norms,omitempty"`
}

type WeeklyTierJSON struct {
	Threshold int             `json:"threshold"`
	Bonus     decimal.Decimal `json:"bonus"`
}

type NormsJSON struct {
	MinCalls   int `json:"min_calls"`
	MaxCalls   int `json:"max_calls"`
	MinMinutes int `json:"min_minutes"`
}

type ExpertJSON struct {
	HardSalary      *decimal.Decimal     `json:"hard_salary,omitempty"`
	BestMonthBonus  *decimal.Decimal     `json:"best_month_bonus,omitempty"`
	CommissionTiers []CommissionTierJSON `json:"commission_tiers,omitempty"`
}

// CommissionTierJSON applies Rate below the Below plan percent. Omit Below
// on the top tier.
type CommissionTierJSON struct {
	Name  string           `json:"name,omitempty"`
	Below *decimal.Decimal `json:"below,omitempty"`
	Rate  decimal.Decimal  `json:"rate"`
}

type MarketerJSON struct {
	DefaultBase *decimal.Decimal `json:"default_base,omitempty"`
	ROITable    []ROITierJSON    `json:"roi_table,omitempty"`
}

type ROITierJSON struct {
	MinROI  decimal.Decimal `json:"min_roi"`
	Percent decimal.Decimal `json:"percent"`
}

type PromotionJSON struct {
	MinTenureMonths *int `json:"min_tenure_months,omitempty"`
	MinBestMonths   *int `json:"min_best_months,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to salary.Config.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// LoadFile reads and parses a plan file.
func (f *PlanFactory) LoadFile(path string) (salary.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return salary.Config{}, fmt.Errorf("read salary plan: %w", err)
	}
	return f.ParsePlan(string(data))
}

// ParsePlan parses a JSON string into a salary.Config.
func (f *PlanFactory) ParsePlan(jsonStr string) (salary.Config, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return salary.Config{}, fmt.Errorf("failed to parse salary plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON overlays pj on the default config.
func (f *PlanFactory) FromJSON(pj PlanJSON) (salary.Config, error) {
	cfg := salary.DefaultConfig()

	if mj := pj.Manager; mj != nil {
		setMoney(&cfg.Manager.HardSalary, mj.HardSalary)
		setMoney(&cfg.Manager.MaxDiscipline, mj.MaxDiscipline)
		setMoney(&cfg.Manager.BonusPerDone, mj.BonusPerDone)
		setMoney(&cfg.Manager.PenaltyPerDay, mj.PenaltyPerDay)
		setMoney(&cfg.Manager.BestMonthBonus, mj.BestMonthBonus)
		setMoney(&cfg.Manager.PromotedFix, mj.PromotedFix)
		if len(mj.WeeklyLadder) > 0 {
			ladder, err := parseLadder(mj.WeeklyLadder)
			if err != nil {
				return salary.Config{}, err
			}
			cfg.Manager.WeeklyLadder = ladder
		}
		if mj.Norms != nil {
			if mj.Norms.MaxCalls < mj.Norms.MinCalls {
				return salary.Config{}, &PlanError{Field: "manager.norms", Reason: "max_calls below min_calls"}
			}
			cfg.Manager.Norms = salary.DailyNorms{
				MinCalls:   mj.Norms.MinCalls,
				MaxCalls:   mj.Norms.MaxCalls,
				MinMinutes: mj.Norms.MinMinutes,
			}
		}
	}

	if ej := pj.Expert; ej != nil {
		setMoney(&cfg.Expert.HardSalary, ej.HardSalary)
		setMoney(&cfg.Expert.BestMonthBonus, ej.BestMonthBonus)
		if len(ej.CommissionTiers) > 0 {
			tiers, err := parseCommissionTiers(ej.CommissionTiers)
			if err != nil {
				return salary.Config{}, err
			}
			cfg.Expert.Tiers = tiers
		}
	}

	if kj := pj.Marketer; kj != nil {
		setMoney(&cfg.Marketer.DefaultBase, kj.DefaultBase)
		if len(kj.ROITable) > 0 {
			table, err := parseROITable(kj.ROITable)
			if err != nil {
				return salary.Config{}, err
			}
			cfg.Marketer.ROITable = table
		}
	}

	if pr := pj.Promotion; pr != nil {
		if pr.MinTenureMonths != nil {
			cfg.Promotion.MinTenureMonths = *pr.MinTenureMonths
		}
		if pr.MinBestMonths != nil {
			cfg.Promotion.MinBestMonths = *pr.MinBestMonths
		}
	}

	if err := validateMoney(cfg); err != nil {
		return salary.Config{}, err
	}
	return cfg, nil
}

// ToJSON converts a Config to PlanJSON.
func (f *PlanFactory) ToJSON(name string, cfg salary.Config) PlanJSON {
	m := cfg.Manager
	pj := PlanJSON{
		Name: name,
		Manager: &ManagerJSON{
			HardSalary:     ptr(m.HardSalary),
			MaxDiscipline:  ptr(m.MaxDiscipline),
			BonusPerDone:   ptr(m.BonusPerDone),
			PenaltyPerDay:  ptr(m.PenaltyPerDay),
			BestMonthBonus: ptr(m.BestMonthBonus),
			PromotedFix:    ptr(m.PromotedFix),
			Norms: &NormsJSON{
				MinCalls:   m.Norms.MinCalls,
				MaxCalls:   m.Norms.MaxCalls,
				MinMinutes: m.Norms.MinMinutes,
			},
		},
		Expert: &ExpertJSON{
			HardSalary:     ptr(cfg.Expert.HardSalary),
			BestMonthBonus: ptr(cfg.Expert.BestMonthBonus),
		},
		Marketer: &MarketerJSON{
			DefaultBase: ptr(cfg.Marketer.DefaultBase),
		},
		Promotion: &PromotionJSON{
			MinTenureMonths: &cfg.Promotion.MinTenureMonths,
			MinBestMonths:   &cfg.Promotion.MinBestMonths,
		},
	}

	for _, t := range m.WeeklyLadder {
		pj.Manager.WeeklyLadder = append(pj.Manager.WeeklyLadder, WeeklyTierJSON{Threshold: t.Threshold, Bonus: t.Bonus})
	}
	for _, t := range cfg.Expert.Tiers {
		tj := CommissionTierJSON{Name: t.Name, Rate: t.Rate}
		if t.Below != nil {
			tj.Below = ptr(*t.Below)
		}
		pj.Expert.CommissionTiers = append(pj.Expert.CommissionTiers, tj)
	}
	for _, t := range cfg.Marketer.ROITable {
		pj.Marketer.ROITable = append(pj.Marketer.ROITable, ROITierJSON{MinROI: t.MinROI, Percent: t.Percent})
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }

func setMoney(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func parseLadder(in []WeeklyTierJSON) ([]salary.WeeklyTier, error) {
	out := make([]salary.WeeklyTier, 0, len(in))
	for i, t := range in {
		if t.Threshold <= 0 {
			return nil, &PlanError{Field: fmt.Sprintf("manager.weekly_ladder[%d]", i), Reason: "threshold must be positive"}
		}
		out = append(out, salary.WeeklyTier{Threshold: t.Threshold, Bonus: t.Bonus})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold > out[j].Threshold })
	return out, nil
}

func parseCommissionTiers(in []CommissionTierJSON) ([]salary.CommissionTier, error) {
	out := make([]salary.CommissionTier, 0, len(in))
	unbounded := 0
	for i, t := range in {
		if t.Rate.IsNegative() {
			return nil, &PlanError{Field: fmt.Sprintf("expert.commission_tiers[%d]", i), Reason: "negative rate"}
		}
		tier := salary.CommissionTier{Name: t.Name, Rate: t.Rate}
		if t.Below != nil {
			tier.Below = ptr(*t.Below)
		} else {
			unbounded++
		}
		out = append(out, tier)
	}
	if unbounded > 1 {
		return nil, &PlanError{Field: "expert.commission_tiers", Reason: "more than one tier without \"below\""}
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch {
		case out[i].Below == nil:
			return false
		case out[j].Below == nil:
			return true
		default:
			return out[i].Below.LessThan(*out[j].Below)
		}
	})
	return out, nil
}

func parseROITable(in []ROITierJSON) ([]salary.ROITier, error) {
	out := make([]salary.ROITier, 0, len(in))
	for i, t := range in {
		if t.Percent.IsNegative() {
			return nil, &PlanError{Field: fmt.Sprintf("marketer.roi_table[%d]", i), Reason: "negative percent"}
		}
		out = append(out, salary.ROITier{MinROI: t.MinROI, Percent: t.Percent})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinROI.GreaterThan(out[j].MinROI) })
	return out, nil
}

func validateMoney(cfg salary.Config) error {
	for field, v := range map[string]decimal.Decimal{
		"manager.hard_salary":      cfg.Manager.HardSalary,
		"manager.max_discipline":   cfg.Manager.MaxDiscipline,
		"manager.bonus_per_done":   cfg.Manager.BonusPerDone,
		"manager.penalty_per_day":  cfg.Manager.PenaltyPerDay,
		"manager.best_month_bonus": cfg.Manager.BestMonthBonus,
		"manager.promoted_fix":     cfg.Manager.PromotedFix,
		"expert.hard_salary":       cfg.Expert.HardSalary,
		"expert.best_month_bonus":  cfg.Expert.BestMonthBonus,
		"marketer.default_base":    cfg.Marketer.DefaultBase,
	} {
		if v.IsNegative() {
			return &PlanError{Field: field, Reason: "negative amount"}
		}
	}
	return nil
}
