package metrics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func jan2026() generic.Period { return generic.MonthPeriod(2026, time.January) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixture() payroll.Dataset {
	return payroll.Dataset{
		Roster: payroll.Roster{
			Managers: []payroll.Manager{
				{ID: "m1", Name: "Anna", MonthPlan: 40},
				{ID: "m2", Name: "Boris", MonthPlan: 0},
				{ID: "m3", Name: "Idle", MonthPlan: 10},
			},
			Experts: []payroll.Expert{
				{ID: "e1", Name: "Vera", MonthPlan: dec("10000000")},
				{ID: "e2", Name: "Gleb"},
			},
			Marketers: []payroll.Marketer{{ID: "k1", Name: "Dina"}, {ID: "k2", Name: "Egor"}},
		},
		ManagerReports: []payroll.ManagerReport{
			{ManagerID: "m1", Date: "2026-01-05", CallsTotal: 100, CallsConnected: 50, AppointmentsSet: 5, AppointmentsDone: 4, Discipline: true},
			{ManagerID: "m1", Date: "2026-01-06", CallsTotal: 60, CallsConnected: 30, AppointmentsSet: 3, AppointmentsDone: 2},
			{ManagerID: "m2", Date: "2026-01-05", CallsTotal: 90, AppointmentsSet: 10, AppointmentsDone: 8},
			{ManagerID: "m1", Date: "2026-02-01", AppointmentsDone: 99},
		},
		ExpertSales: []payroll.ExpertSale{
			{ExpertID: "e1", Date: "2026-01-05", ConductedMeetings: 4, Offers: 3, DealsCount: 2, Amount: dec("9000000"), AmountUSD: dec("700")},
			{ExpertID: "e2", Date: "2026-01-05", ConductedMeetings: 2, Offers: 1, DealsCount: 1, Amount: dec("500000"), AmountUSD: dec("40")},
			{ExpertID: "ghost", Date: "2026-01-05", Offers: 50, DealsCount: 50, Amount: dec("1"), AmountUSD: dec("1")},
		},
		MarketingReports: []payroll.MarketingReport{
			{Date: "2026-01-05", Expenses: dec("100"), Views: 1000, Clicks: 50, Leads: 10, QualLeads: 5},
			{Date: "2026-01-06", Expenses: dec("0"), Views: 0},
		},
	}
}

// =============================================================================
// MANAGERS
// =============================================================================

func TestManager_AggregatesPeriodOnly(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())
	m, _ := s.Data.Manager("m1")

	got := metrics.Manager(s, m)

	assert.Equal(t, 2, got.Reports)
	assert.Equal(t, 160, got.CallsTotal)
	assert.Equal(t, 8, got.AppointmentsSet)
	assert.Equal(t, 6, got.AppointmentsDone, "February report excluded")
	assert.Equal(t, 1, got.DisciplinedDays)
	assert.Equal(t, "5", got.ConvCallsToSet.String())
	assert.Equal(t, "75", got.ConvSetToDone.String())
	assert.Equal(t, "15", got.PlanPercent.String())
}

func TestManager_ZeroDenominatorsAreZero(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())
	m, _ := s.Data.Manager("m3")

	got := metrics.Manager(s, m)

	assert.True(t, got.ConvCallsToSet.IsZero())
	assert.True(t, got.ConvSetToDone.IsZero())
	assert.True(t, got.PlanPercent.IsZero())
}

func TestAllManagers_OmitsIdleAndSortsByDone(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())

	got := metrics.AllManagers(s)

	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].ManagerID)
	assert.Equal(t, "m1", got[1].ManagerID)
	assert.True(t, got[0].PlanPercent.IsZero(), "no plan means 0%")
}

func TestManagerDay(t *testing.T) {
	kpi := metrics.ManagerDay(payroll.ManagerReport{CallsConnected: 50, AppointmentsSet: 5, AppointmentsDone: 4})

	assert.Equal(t, "80", kpi.ConvAttendance.String())
	assert.Equal(t, "10", kpi.ConvAppointment.String())
}

// =============================================================================
// EXPERTS
// =============================================================================

func TestExpert_PlanPercent(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())
	e, _ := s.Data.Expert("e1")

	got := metrics.Expert(s, e)

	assert.Equal(t, "90", got.PlanPercent.String())
	assert.Equal(t, "50", got.ConvConductedToSale.String())
	assert.True(t, got.RevenueUSD.Equal(dec("700")))
}

func TestAllExperts_SortedByRevenue(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())

	got := metrics.AllExperts(s)

	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ExpertID)

	totals := metrics.Summarize(metrics.AllManagers(s), got)
	assert.True(t, totals.Revenue.Equal(dec("9500000")))
	assert.Equal(t, 3, totals.Sales)
	assert.Equal(t, 2, totals.Managers)
	assert.Equal(t, 2, totals.Experts)
}

func TestForEntity_UnknownIsNotFound(t *testing.T) {
	s := payroll.NewScope(fixture(), jan2026())

	_, err := metrics.ForEntity(s, payroll.RoleExpert, "ghost")
	assert.True(t, generic.IsNotFound(err))

	v, err := metrics.ForEntity(s, payroll.RoleManager, "m1")
	require.NoError(t, err)
	assert.IsType(t, &metrics.ManagerMetrics{}, v)
}

// =============================================================================
// FUNNEL
// =============================================================================

func TestSyncedDailyView_JoinsRolesAndDropsGhosts(t *testing.T) {
	row := metrics.SyncedDailyView(fixture(), "2026-01-05")

	assert.Equal(t, 1000, row.Views)
	assert.Equal(t, 15, row.Appointments)
	assert.Equal(t, 12, row.Conducted)
	assert.Equal(t, 4, row.Offers, "ghost expert's offers ignored")
	assert.Equal(t, 3, row.Sales)
	assert.True(t, row.RevenueUSD.Equal(dec("740")))
	assert.Equal(t, "640", row.ROMI.String())
}

func TestSyncedDailyView_EmptyDay(t *testing.T) {
	row := metrics.SyncedDailyView(fixture(), "2026-01-20")

	assert.True(t, row.Expenses.IsZero())
	assert.Equal(t, 0, row.Sales)
	assert.True(t, row.ROMI.IsZero())
}

func TestFunnelMetrics(t *testing.T) {
	f := metrics.FunnelMetrics(payroll.NewScope(fixture(), jan2026()))

	assert.Len(t, f.Days, 31)
	assert.True(t, f.Expenses.Equal(dec("100")))
	assert.Equal(t, "5", f.CTR.String())
	assert.Equal(t, "20", f.SiteConv.String())
	assert.Equal(t, "50", f.CRQual.String())
	assert.Equal(t, 14, f.Conducted)
	assert.Equal(t, "10", f.CPL.String())
	assert.Equal(t, "7.14", f.CPK.String())
	assert.Equal(t, "33.33", f.CAC.String())
	assert.Equal(t, "640", f.ROMI.String())
}

func TestFunnelMetrics_NoSpendNoNaN(t *testing.T) {
	f := metrics.FunnelMetrics(payroll.NewScope(payroll.Dataset{}, jan2026()))

	for _, v := range []decimal.Decimal{f.CTR, f.SiteConv, f.CRQual, f.CRAppToConducted, f.CRConductedToOffer,
		f.CROfferToSale, f.CRLeadToConducted, f.CRSaleTotal, f.CRSaleFromConducted, f.CPL, f.CPK, f.CAC, f.ROMI} {
		assert.True(t, v.IsZero())
	}
}

func TestAllMarketers_ShareGlobalFigures(t *testing.T) {
	got := metrics.AllMarketers(payroll.NewScope(fixture(), jan2026()))

	require.Len(t, got, 2)
	assert.Equal(t, got[0].ROI, got[1].ROI)
	assert.Equal(t, "740", got[0].ROI.String())
}
