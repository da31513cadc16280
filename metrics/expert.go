package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// ExpertMetrics aggregates one expert over a period. Revenue is local
// currency and drives salary; RevenueUSD feeds marketing.
type ExpertMetrics struct {
	ExpertID            string          `json:"expertId"`
	ExpertName          string          `json:"expertName"`
	Reports             int             `json:"reports"`
	ConductedMeetings   int             `json:"conductedMeetings"`
	Offers              int             `json:"totalOffers"`
	Deals               int             `json:"totalDeals"`
	Revenue             decimal.Decimal `json:"totalRevenue"`
	RevenueUSD          decimal.Decimal `json:"totalRevenueUsd"`
	DisciplinedDays     int             `json:"disciplinedDays"`
	ConvConductedToSale decimal.Decimal `json:"conversionConductedToSale"`
	MonthPlan           decimal.Decimal `json:"monthPlan"`
	PlanPercent         decimal.Decimal `json:"planPercent"`
}

// Expert aggregates e's sales in the scope.
func Expert(s payroll.Scope, e payroll.Expert) ExpertMetrics {
	out := ExpertMetrics{
		ExpertID:   e.ID,
		ExpertName: e.Name,
		Revenue:    decimal.Zero,
		RevenueUSD: decimal.Zero,
		MonthPlan:  e.MonthPlan,
	}
	for _, sale := range s.ExpertSales(e.ID) {
		out.Reports++
		out.ConductedMeetings += sale.ConductedMeetings
		out.Offers += sale.Offers
		out.Deals += sale.DealsCount
		out.Revenue = out.Revenue.Add(sale.Amount)
		out.RevenueUSD = out.RevenueUSD.Add(sale.AmountUSD)
		if sale.Discipline {
			out.DisciplinedDays++
		}
	}
	out.ConvConductedToSale = generic.PercentInt(out.Deals, out.ConductedMeetings)
	out.PlanPercent = generic.Percent(out.Revenue, e.MonthPlan)
	return out
}

// AllExperts ranks experts with at least one sale record by revenue,
// highest first.
func AllExperts(s payroll.Scope) []ExpertMetrics {
	var out []ExpertMetrics
	for _, e := range s.Data.Experts {
		em := Expert(s, e)
		if em.Reports == 0 {
			continue
		}
		out = append(out, em)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Revenue.GreaterThan(out[j].Revenue)
	})
	return out
}

// Totals are the headline numbers of a period.
type Totals struct {
	Revenue    decimal.Decimal `json:"totalRevenue"`
	RevenueUSD decimal.Decimal `json:"totalRevenueUsd"`
	Sales      int             `json:"totalSales"`
	Managers   int             `json:"totalManagers"`
	Experts    int             `json:"totalExperts"`
}

// Summarize sums ranked experts and counts active managers.
func Summarize(managers []ManagerMetrics, experts []ExpertMetrics) Totals {
	t := Totals{Revenue: decimal.Zero, RevenueUSD: decimal.Zero, Managers: len(managers), Experts: len(experts)}
	for _, e := range experts {
		t.Revenue = t.Revenue.Add(e.Revenue)
		t.RevenueUSD = t.RevenueUSD.Add(e.RevenueUSD)
		t.Sales += e.Deals
	}
	return t
}
