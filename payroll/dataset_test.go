package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
)

func TestDedup_LastWriteWinsFirstSlotKept(t *testing.T) {
	// GIVEN the same (manager, day) written three times around another row
	d := payroll.Dataset{
		ManagerReports: []payroll.ManagerReport{
			{ManagerID: "m1", Date: "2026-01-05", CallsTotal: 10},
			{ManagerID: "m2", Date: "2026-01-05", CallsTotal: 20},
			{ManagerID: "m1", Date: "2026-01-05", CallsTotal: 30},
			{ManagerID: "m1", Date: "2026-01-05", CallsTotal: 40},
		},
		ExpertSales: []payroll.ExpertSale{
			{ExpertID: "e1", Date: "2026-01-05", Offers: 1},
			{ExpertID: "e1", Date: "2026-01-05", Offers: 2},
		},
		MarketingReports: []payroll.MarketingReport{
			{Date: "2026-01-05", Views: 1},
			{Date: "2026-01-05", Views: 9},
		},
	}

	// WHEN deduplicated
	out := d.Dedup()

	// THEN exactly one row per key, carrying the latest values
	require.Len(t, out.ManagerReports, 2)
	assert.Equal(t, "m1", out.ManagerReports[0].ManagerID)
	assert.Equal(t, 40, out.ManagerReports[0].CallsTotal)
	assert.Equal(t, 20, out.ManagerReports[1].CallsTotal)

	require.Len(t, out.ExpertSales, 1)
	assert.Equal(t, 2, out.ExpertSales[0].Offers)

	require.Len(t, out.MarketingReports, 1)
	assert.Equal(t, 9, out.MarketingReports[0].Views)

	// AND the input is untouched
	assert.Len(t, d.ManagerReports, 4)
}

func TestWithinOutside_PartitionReports(t *testing.T) {
	d := payroll.Dataset{
		Roster: payroll.Roster{Managers: []payroll.Manager{{ID: "m1"}}},
		ManagerReports: []payroll.ManagerReport{
			{ManagerID: "m1", Date: "2025-12-31"},
			{ManagerID: "m1", Date: "2026-01-01"},
			{ManagerID: "m1", Date: "2026-01-31"},
			{ManagerID: "m1", Date: "2026-02-01"},
		},
	}
	jan := generic.MonthPeriod(2026, time.January)

	in := d.Within(jan)
	out := d.Outside(jan)

	assert.Len(t, in.ManagerReports, 2)
	assert.Len(t, out.ManagerReports, 2)
	assert.Len(t, out.Managers, 1, "roster is not filtered")
	assert.Len(t, d.ReportMonths(), 3)
}

func TestCellApply_CreatesDefaultedRecord(t *testing.T) {
	var d payroll.Dataset

	payroll.ManagerCell{ManagerID: "m1", Date: "2026-01-05", Field: payroll.MFCallsTotal, Value: payroll.Text("-12")}.Apply(&d)

	require.Len(t, d.ManagerReports, 1)
	r := d.ManagerReports[0]
	assert.Equal(t, 0, r.CallsTotal, "negative input clamps to 0")
	assert.False(t, r.Discipline)
	assert.True(t, r.CRMCompliant(), "new records are CRM compliant")

	// Second edit on the same key mutates in place
	payroll.ManagerCell{ManagerID: "m1", Date: "2026-01-05", Field: payroll.MFCRMOk, Value: payroll.Flag(false)}.Apply(&d)
	payroll.ManagerCell{ManagerID: "m1", Date: "2026-01-05", Field: payroll.MFCallsTotal, Value: payroll.Text("100")}.Apply(&d)

	require.Len(t, d.ManagerReports, 1)
	assert.Equal(t, 100, d.ManagerReports[0].CallsTotal)
	assert.False(t, d.ManagerReports[0].CRMCompliant())
}

func TestCellApply_ExpertAmounts(t *testing.T) {
	var d payroll.Dataset

	payroll.ExpertCell{ExpertID: "e1", Date: "2026-01-05", Field: payroll.EFAmount, Value: payroll.Text("1 500 000,5")}.Apply(&d)
	payroll.ExpertCell{ExpertID: "e1", Date: "2026-01-05", Field: payroll.EFDiscipline, Value: payroll.Text("true")}.Apply(&d)

	require.Len(t, d.ExpertSales, 1)
	assert.True(t, decimal.RequireFromString("1500000.5").Equal(d.ExpertSales[0].Amount))
	assert.True(t, d.ExpertSales[0].Discipline)
}

func TestParseCell(t *testing.T) {
	c, err := payroll.ParseCell(payroll.RoleMarketer, "", "2026-01-05", "clicks", payroll.Text("42"))
	require.NoError(t, err)

	var d payroll.Dataset
	c.Apply(&d)
	require.Len(t, d.MarketingReports, 1)
	assert.Equal(t, 42, d.MarketingReports[0].Clicks)

	_, err = payroll.ParseCell(payroll.RoleManager, "m1", "2026-01-05", "salary", payroll.Text("1"))
	assert.ErrorIs(t, err, payroll.ErrUnknownField)

	_, err = payroll.ParseCell(payroll.RoleManager, "m1", "05.01.2026", "callsTotal", payroll.Text("1"))
	assert.ErrorIs(t, err, generic.ErrInvalidDate)
}

func TestClone_IsDeep(t *testing.T) {
	ok := true
	base := decimal.NewFromInt(200)
	d := payroll.Dataset{
		Roster:         payroll.Roster{Marketers: []payroll.Marketer{{ID: "k", BaseFix: &base}}},
		ManagerReports: []payroll.ManagerReport{{ManagerID: "m", Date: "2026-01-01", CRMOk: &ok}},
	}

	c := d.Clone()
	*c.ManagerReports[0].CRMOk = false
	c.ManagerReports[0].CallsTotal = 5
	*c.Marketers[0].BaseFix = decimal.NewFromInt(1)

	assert.True(t, *d.ManagerReports[0].CRMOk)
	assert.Equal(t, 0, d.ManagerReports[0].CallsTotal)
	assert.True(t, d.Marketers[0].BaseFix.Equal(base))
}

func TestVisible(t *testing.T) {
	admin := payroll.Principal{Admin: true}
	linked := payroll.Principal{Role: payroll.RoleManager, EntityID: "m1"}
	unlinked := payroll.Principal{Role: payroll.RoleMarketer}

	assert.True(t, payroll.Visible(admin, "m2"))
	assert.True(t, payroll.Visible(linked, "m1"))
	assert.False(t, payroll.Visible(linked, "m2"))
	assert.True(t, payroll.Visible(unlinked, "m2"))
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]payroll.Role{
		"managers": payroll.RoleManager, "Expert": payroll.RoleExpert, "marketing": payroll.RoleMarketer,
	} {
		got, err := payroll.ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := payroll.ParseRole("ceo")
	assert.ErrorIs(t, err, payroll.ErrUnknownRole)
}
