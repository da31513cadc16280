package metrics

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

// =============================================================================
// SYNCED DAILY VIEW - Marketing row joined with manager and expert records
// =============================================================================

// DailyFunnelRow is one day of the funnel. Only expenses through qualified
// leads are entered by marketing; the rest is derived from manager and
// expert records of the same date and is never stored.
type DailyFunnelRow struct {
	Date         string          `json:"date"`
	Expenses     decimal.Decimal `json:"expenses"`
	Views        int             `json:"views"`
	Clicks       int             `json:"clicks"`
	Leads        int             `json:"leads"`
	QualLeads    int             `json:"qualLeads"`
	Appointments int             `json:"appointments"`
	Conducted    int             `json:"conducted"`
	Offers       int             `json:"offers"`
	Sales        int             `json:"sales"`
	Revenue      decimal.Decimal `json:"revenue"`
	RevenueUSD   decimal.Decimal `json:"revenueUSD"`
	ROMI         decimal.Decimal `json:"romi"`
}

// SyncedDailyView builds the funnel row for one date. Sales whose expert is
// not on the roster are ignored so stale records cannot inflate totals.
func SyncedDailyView(d payroll.Dataset, date string) DailyFunnelRow {
	row := DailyFunnelRow{
		Date:       date,
		Expenses:   decimal.Zero,
		Revenue:    decimal.Zero,
		RevenueUSD: decimal.Zero,
	}

	for _, r := range d.MarketingReports {
		if r.Date == date {
			row.Expenses = r.Expenses
			row.Views = r.Views
			row.Clicks = r.Clicks
			row.Leads = r.Leads
			row.QualLeads = r.QualLeads
			break
		}
	}

	for _, r := range d.ManagerReports {
		if r.Date != date {
			continue
		}
		row.Appointments += r.AppointmentsSet
		row.Conducted += r.AppointmentsDone
	}

	known := make(map[string]bool, len(d.Experts))
	for _, e := range d.Experts {
		known[e.ID] = true
	}
	for _, s := range d.ExpertSales {
		if s.Date != date || !known[s.ExpertID] {
			continue
		}
		row.Offers += s.Offers
		row.Sales += s.DealsCount
		row.Revenue = row.Revenue.Add(s.Amount)
		row.RevenueUSD = row.RevenueUSD.Add(s.AmountUSD)
	}

	row.ROMI = romi(row.RevenueUSD, row.Expenses)
	return row
}

func romi(revenueUSD, expenses decimal.Decimal) decimal.Decimal {
	return generic.Percent(revenueUSD.Sub(expenses), expenses)
}

// =============================================================================
// FUNNEL - Period totals and rates
// =============================================================================

// Funnel sums the synced daily view over every day of a period.
type Funnel struct {
	Expenses     decimal.Decimal `json:"expenses"`
	Views        int             `json:"views"`
	Clicks       int             `json:"clicks"`
	Leads        int             `json:"leads"`
	QualLeads    int             `json:"qualLeads"`
	Appointments int             `json:"appointments"`
	Conducted    int             `json:"conducted"`
	Offers       int             `json:"offers"`
	Sales        int             `json:"sales"`
	Revenue      decimal.Decimal `json:"revenue"`
	RevenueUSD   decimal.Decimal `json:"revenueUSD"`

	CTR                 decimal.Decimal `json:"CTR"`
	SiteConv            decimal.Decimal `json:"siteConv"`
	CRQual              decimal.Decimal `json:"crQual"`
	CRAppToConducted    decimal.Decimal `json:"crAppToConducted"`
	CRConductedToOffer  decimal.Decimal `json:"crConductedToOffer"`
	CROfferToSale       decimal.Decimal `json:"crOfferToSale"`
	CRLeadToConducted   decimal.Decimal `json:"crLeadToConducted"`
	CRSaleTotal         decimal.Decimal `json:"crSaleTotal"`
	CRSaleFromConducted decimal.Decimal `json:"crSaleFromConducted"`

	CPL  decimal.Decimal `json:"CPL"`
	CPK  decimal.Decimal `json:"CPK"`
	CAC  decimal.Decimal `json:"CAC"`
	ROMI decimal.Decimal `json:"ROMI"`

	Days []DailyFunnelRow `json:"days,omitempty"`
}

// FunnelMetrics aggregates the scope's period day by day.
func FunnelMetrics(s payroll.Scope) Funnel {
	f := Funnel{Expenses: decimal.Zero, Revenue: decimal.Zero, RevenueUSD: decimal.Zero}

	for _, day := range s.Period.Days() {
		row := SyncedDailyView(s.Data, day.String())
		f.Days = append(f.Days, row)

		f.Expenses = f.Expenses.Add(row.Expenses)
		f.Views += row.Views
		f.Clicks += row.Clicks
		f.Leads += row.Leads
		f.QualLeads += row.QualLeads
		f.Appointments += row.Appointments
		f.Conducted += row.Conducted
		f.Offers += row.Offers
		f.Sales += row.Sales
		f.Revenue = f.Revenue.Add(row.Revenue)
		f.RevenueUSD = f.RevenueUSD.Add(row.RevenueUSD)
	}

	f.CTR = generic.PercentInt(f.Clicks, f.Views)
	f.SiteConv = generic.PercentInt(f.Leads, f.Clicks)
	f.CRQual = generic.PercentInt(f.QualLeads, f.Leads)
	f.CRAppToConducted = generic.PercentInt(f.Conducted, f.Appointments)
	f.CRConductedToOffer = generic.PercentInt(f.Offers, f.Conducted)
	f.CROfferToSale = generic.PercentInt(f.Sales, f.Offers)
	f.CRLeadToConducted = generic.PercentInt(f.Conducted, f.Leads)
	f.CRSaleTotal = generic.PercentInt(f.Sales, f.Leads)
	f.CRSaleFromConducted = generic.PercentInt(f.Sales, f.Conducted)

	f.CPL = generic.RatioInt(f.Expenses, f.Leads)
	f.CPK = generic.RatioInt(f.Expenses, f.Conducted)
	f.CAC = generic.RatioInt(f.Expenses, f.Sales)
	f.ROMI = romi(f.RevenueUSD, f.Expenses)
	return f
}

// =============================================================================
// MARKETERS - Everyone shares the organisation's budget and ROI
// =============================================================================

// MarketerMetrics is one marketer's view of the period. Budget and ROI are
// the organisation's figures, not per-marketer spend.
type MarketerMetrics struct {
	MarketerID string          `json:"id"`
	Name       string          `json:"name"`
	Budget     decimal.Decimal `json:"budget"`
	RevenueUSD decimal.Decimal `json:"revenueUSD"`
	ROI        decimal.Decimal `json:"roi"`
}

// MarketingROI is revenueUSD / expenses * 100, unrounded, 0 without spend.
func MarketingROI(revenueUSD, expenses decimal.Decimal) decimal.Decimal {
	if !expenses.IsPositive() {
		return decimal.Zero
	}
	return revenueUSD.Mul(generic.Hundred()).Div(expenses)
}

// Marketer reports the shared figures for m.
func Marketer(s payroll.Scope, m payroll.Marketer) MarketerMetrics {
	return marketerFrom(FunnelMetrics(s), m)
}

func marketerFrom(f Funnel, m payroll.Marketer) MarketerMetrics {
	return MarketerMetrics{
		MarketerID: m.ID,
		Name:       m.Name,
		Budget:     f.Expenses,
		RevenueUSD: f.RevenueUSD,
		ROI:        MarketingROI(f.RevenueUSD, f.Expenses).Round(generic.RatioPlaces),
	}
}

// AllMarketers includes every marketer, reported or not.
func AllMarketers(s payroll.Scope) []MarketerMetrics {
	f := FunnelMetrics(s)
	out := make([]MarketerMetrics, 0, len(s.Data.Marketers))
	for _, m := range s.Data.Marketers {
		out = append(out, marketerFrom(f, m))
	}
	return out
}
