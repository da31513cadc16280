package salary

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
)

// MoneyPlaces is the precision of prorated amounts.
const MoneyPlaces = 2

// Calculator applies a Config to scopes.
type Calculator struct {
	cfg Config
}

func New(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the rates in use.
func (c *Calculator) Config() Config { return c.cfg }

// =============================================================================
// MANAGERS
// =============================================================================

// ManagerPay is one manager's salary breakdown.
type ManagerPay struct {
	ManagerID       string          `json:"managerId"`
	ManagerName     string          `json:"managerName"`
	BaseFix         decimal.Decimal `json:"baseFix"`
	DisciplineBonus decimal.Decimal `json:"disciplineBonus"`
	PieceBonus      decimal.Decimal `json:"pieceBonus"`
	WeeklyBonuses   decimal.Decimal `json:"weeklyBonuses"`
	BestMonthBonus  decimal.Decimal `json:"bestMonthBonus"`
	PenaltiesCount  int             `json:"penaltiesCount"`
	PenaltiesAmount decimal.Decimal `json:"penaltiesAmount"`
	TotalSalary     decimal.Decimal `json:"totalSalary"`
	TotalDone       int             `json:"totalDone"`
	Reports         int             `json:"reports"`
}

// IsDailyNormViolated reports whether a manager's day breaks the norms:
// calls outside [MinCalls, MaxCalls], fewer than MinMinutes on line, or a
// CRM flag explicitly false.
func (n DailyNorms) IsDailyNormViolated(r payroll.ManagerReport) bool {
	callsOk := r.CallsTotal >= n.MinCalls && r.CallsTotal <= n.MaxCalls
	minutesOk := r.CallsQuality >= n.MinMinutes
	return !(callsOk && minutesOk && r.CRMCompliant())
}

// IsDailyNormViolated checks a report against the configured norms.
func (c *Calculator) IsDailyNormViolated(r payroll.ManagerReport) bool {
	return c.cfg.Manager.Norms.IsDailyNormViolated(r)
}

// WeeklyBonuses buckets reports by ISO week and sums the ladder bonus of
// each week.
func (c *Calculator) WeeklyBonuses(reports []payroll.ManagerReport) decimal.Decimal {
	weeks := make(map[generic.WeekKey]int)
	for _, r := range reports {
		tp, err := generic.ParseDate(r.Date)
		if err != nil {
			continue
		}
		weeks[tp.ISOWeek()] += r.AppointmentsDone
	}
	total := decimal.Zero
	for _, done := range weeks {
		total = total.Add(c.cfg.Manager.WeeklyBonus(done))
	}
	return total
}

// Manager computes m's salary in the scope.
func (c *Calculator) Manager(s payroll.Scope, m payroll.Manager) ManagerPay {
	cfg := c.cfg.Manager
	reports := s.ManagerReports(m.ID)

	pay := ManagerPay{
		ManagerID:       m.ID,
		ManagerName:     m.Name,
		DisciplineBonus: decimal.Zero,
		BestMonthBonus:  decimal.Zero,
		Reports:         len(reports),
	}

	disciplined := 0
	for _, r := range reports {
		pay.TotalDone += r.AppointmentsDone
		if r.Discipline {
			disciplined++
		}
		if cfg.Norms.IsDailyNormViolated(r) {
			pay.PenaltiesCount++
		}
	}

	if m.Promoted {
		pay.BaseFix = cfg.PromotedFix
	} else {
		if len(reports) > 0 {
			pay.DisciplineBonus = cfg.MaxDiscipline.
				Mul(decimal.NewFromInt(int64(disciplined))).
				Div(decimal.NewFromInt(int64(len(reports)))).
				Round(MoneyPlaces)
		}
		pay.BaseFix = cfg.HardSalary.Add(pay.DisciplineBonus)
	}

	pay.PieceBonus = cfg.BonusPerDone.Mul(decimal.NewFromInt(int64(pay.TotalDone)))
	pay.WeeklyBonuses = c.WeeklyBonuses(reports)
	pay.PenaltiesAmount = cfg.PenaltyPerDay.Mul(decimal.NewFromInt(int64(pay.PenaltiesCount)))

	if best, ok := BestManager(s); ok && best == m.ID {
		pay.BestMonthBonus = cfg.BestMonthBonus
	}

	pay.TotalSalary = pay.BaseFix.
		Add(pay.PieceBonus).
		Add(pay.WeeklyBonuses).
		Add(pay.BestMonthBonus).
		Sub(pay.PenaltiesAmount)
	return pay
}

// AllManagers computes salaries for every manager on the roster.
func (c *Calculator) AllManagers(s payroll.Scope) []ManagerPay {
	out := make([]ManagerPay, 0, len(s.Data.Managers))
	for _, m := range s.Data.Managers {
		out = append(out, c.Manager(s, m))
	}
	return out
}

// BestManager returns the manager with the most completed appointments in
// the scope. Nobody wins when the maximum is zero.
func BestManager(s payroll.Scope) (string, bool) {
	done := make(map[string]int, len(s.Data.Managers))
	for _, m := range s.Data.Managers {
		for _, r := range s.ManagerReports(m.ID) {
			done[m.ID] += r.AppointmentsDone
		}
	}
	return pickBest(done, func(a, b int) int { return a - b })
}

// =============================================================================
// EXPERTS
// =============================================================================

// ExpertPay is one expert's salary breakdown.
type ExpertPay struct {
	ExpertID       string          `json:"expertId"`
	ExpertName     string          `json:"expertName"`
	BaseFix        decimal.Decimal `json:"baseFix"`
	Revenue        decimal.Decimal `json:"totalRevenue"`
	PlanPercent    decimal.Decimal `json:"planPercent"`
	Tier           string          `json:"tier"`
	CommissionRate decimal.Decimal `json:"commissionRate"`
	Commission     decimal.Decimal `json:"commission"`
	BestMonthBonus decimal.Decimal `json:"bestMonthBonus"`
	TotalSalary    decimal.Decimal `json:"totalSalary"`
}

// Expert computes e's salary in the scope.
func (c *Calculator) Expert(s payroll.Scope, e payroll.Expert) ExpertPay {
	cfg := c.cfg.Expert
	em := metrics.Expert(s, e)
	tier := cfg.Tier(em.PlanPercent)

	pay := ExpertPay{
		ExpertID:       e.ID,
		ExpertName:     e.Name,
		BaseFix:        cfg.HardSalary,
		Revenue:        em.Revenue,
		PlanPercent:    em.PlanPercent,
		Tier:           tier.Name,
		CommissionRate: tier.Rate,
		Commission:     em.Revenue.Mul(tier.Rate),
		BestMonthBonus: decimal.Zero,
	}
	if best, ok := BestExpert(s); ok && best == e.ID {
		pay.BestMonthBonus = cfg.BestMonthBonus
	}
	pay.TotalSalary = pay.BaseFix.Add(pay.Commission).Add(pay.BestMonthBonus)
	return pay
}

func (c *Calculator) AllExperts(s payroll.Scope) []ExpertPay {
	out := make([]ExpertPay, 0, len(s.Data.Experts))
	for _, e := range s.Data.Experts {
		out = append(out, c.Expert(s, e))
	}
	return out
}

// BestExpert returns the expert with the highest local-currency revenue in
// the scope. Nobody wins when the maximum is zero.
func BestExpert(s payroll.Scope) (string, bool) {
	revenue := make(map[string]decimal.Decimal, len(s.Data.Experts))
	for _, e := range s.Data.Experts {
		sum := decimal.Zero
		for _, sale := range s.ExpertSales(e.ID) {
			sum = sum.Add(sale.Amount)
		}
		revenue[e.ID] = sum
	}
	return pickBest(revenue, func(a, b decimal.Decimal) int { return a.Cmp(b) })
}

// pickBest returns the key with the strictly positive maximum value. Ties
// go to the lowest key.
func pickBest[V any](values map[string]V, cmp func(a, b V) int) (string, bool) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		bestKey string
		bestVal V
		found   bool
	)
	for _, k := range keys {
		v := values[k]
		if !found || cmp(v, bestVal) > 0 {
			bestKey, bestVal, found = k, v, true
		}
	}
	var zero V
	if !found || cmp(bestVal, zero) <= 0 {
		return "", false
	}
	return bestKey, true
}

// =============================================================================
// MARKETERS
// =============================================================================

// MarketerPay is one marketer's salary breakdown.
type MarketerPay struct {
	MarketerID   string          `json:"id"`
	Name         string          `json:"name"`
	BaseFix      decimal.Decimal `json:"baseFix"`
	ROI          decimal.Decimal `json:"roi"`
	Budget       decimal.Decimal `json:"budget"`
	BonusPercent decimal.Decimal `json:"bonusPercent"`
	BonusAmount  decimal.Decimal `json:"bonusAmount"`
	TotalSalary  decimal.Decimal `json:"totalSalary"`
}

// Marketer computes m's salary from the organisation's funnel.
func (c *Calculator) Marketer(s payroll.Scope, m payroll.Marketer) MarketerPay {
	return c.marketerFrom(metrics.FunnelMetrics(s), m)
}

func (c *Calculator) marketerFrom(f metrics.Funnel, m payroll.Marketer) MarketerPay {
	cfg := c.cfg.Marketer
	roi := metrics.MarketingROI(f.RevenueUSD, f.Expenses)
	percent := cfg.BonusPercent(roi)

	pay := MarketerPay{
		MarketerID:   m.ID,
		Name:         m.Name,
		BaseFix:      m.Base(cfg.DefaultBase),
		ROI:          roi.Round(generic.RatioPlaces),
		Budget:       f.Expenses,
		BonusPercent: percent,
		BonusAmount:  f.Expenses.Mul(percent).Div(generic.Hundred()).Round(MoneyPlaces),
	}
	pay.TotalSalary = pay.BaseFix.Add(pay.BonusAmount)
	return pay
}

// AllMarketers computes every marketer's salary. The funnel is computed
// once since everyone shares it.
func (c *Calculator) AllMarketers(s payroll.Scope) []MarketerPay {
	f := metrics.FunnelMetrics(s)
	out := make([]MarketerPay, 0, len(s.Data.Marketers))
	for _, m := range s.Data.Marketers {
		out = append(out, c.marketerFrom(f, m))
	}
	return out
}
