package salary

import (
	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// PromotionEligible reports whether a manager may move to the promoted fix:
// not yet promoted, more than MinTenureMonths calendar months since hire,
// and at least MinBestMonths best-of-month titles.
func (c PromotionConfig) PromotionEligible(m payroll.Manager, today generic.TimePoint) bool {
	if m.Promoted {
		return false
	}
	hired, ok := m.Hired()
	if !ok {
		return false
	}
	if generic.MonthsBetween(hired, today) <= c.MinTenureMonths {
		return false
	}
	return m.BestMonthCount >= c.MinBestMonths
}

// PromotionEligible checks m against the configured thresholds.
func (c *Calculator) PromotionEligible(m payroll.Manager, today generic.TimePoint) bool {
	return c.cfg.Promotion.PromotionEligible(m, today)
}
