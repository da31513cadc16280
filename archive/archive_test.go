package archive_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/archive"
	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/generic/store"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/payroll"
	"github.com/warp/sales-payroll/records"
	"github.com/warp/sales-payroll/salary"
)

var (
	admin  payroll.Actor = payroll.Principal{Admin: true}
	viewer payroll.Actor = payroll.Principal{Role: payroll.RoleManager, EntityID: "m1"}
)

type fixture struct {
	store   *store.TxMemory
	repo    *records.Repository
	manager *archive.Manager
}

func newFixture(t *testing.T, today string) *fixture {
	t.Helper()
	s := store.NewTxMemory()
	repo := records.New(s, records.WithLogger(zerolog.Nop()))
	seq := 0
	m := archive.NewManager(repo, salary.New(salary.DefaultConfig()),
		archive.WithClock(generic.FixedClock{Day: generic.MustParseDate(today)}),
		archive.WithLogger(zerolog.Nop()),
		archive.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("arch-%d", seq)
		}),
	)
	return &fixture{store: s, repo: repo, manager: m}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed writes a roster and a January 2026 month plus one February day.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.repo.AddManager(ctx, payroll.Manager{ID: "m1", Name: "Anna", MonthPlan: 10})
	require.NoError(t, err)
	_, err = f.repo.AddManager(ctx, payroll.Manager{ID: "m2", Name: "Boris", MonthPlan: 10})
	require.NoError(t, err)
	_, err = f.repo.AddExpert(ctx, payroll.Expert{ID: "e1", Name: "Vera", MonthPlan: dec("10000000")})
	require.NoError(t, err)
	_, err = f.repo.AddMarketer(ctx, payroll.Marketer{ID: "k1", Name: "Gleb"})
	require.NoError(t, err)

	manager := func(id, date string, done int) payroll.ManagerReport {
		r := payroll.NewManagerReport(id, date)
		r.CallsTotal, r.CallsQuality = 100, 95
		r.AppointmentsSet, r.AppointmentsDone = done+1, done
		r.Discipline = true
		return r
	}
	require.NoError(t, f.repo.PutReports(ctx, payroll.Dataset{
		ManagerReports: []payroll.ManagerReport{
			manager("m1", "2026-01-05", 4),
			manager("m2", "2026-01-06", 6),
			manager("m1", "2026-02-02", 3),
		},
		ExpertSales: []payroll.ExpertSale{
			{ExpertID: "e1", Date: "2026-01-05", ConductedMeetings: 5, Offers: 3, DealsCount: 2, Amount: dec("9000000"), AmountUSD: dec("12000")},
			{ExpertID: "ghost", Date: "2026-01-05", DealsCount: 9, Amount: dec("1"), AmountUSD: dec("1")},
		},
		MarketingReports: []payroll.MarketingReport{
			{Date: "2026-01-05", Expenses: dec("1000"), Views: 1000, Clicks: 100, Leads: 20, QualLeads: 10},
		},
	}))
}

func jan() generic.Period { return generic.MonthPeriod(2026, time.January) }

// =============================================================================
// CLOSE
// =============================================================================

func TestArchiveMonth_FreezeRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)

	// GIVEN the live January totals
	live, err := f.repo.Dataset(ctx)
	require.NoError(t, err)
	liveScope := payroll.NewScope(live, jan())
	liveTotals := metrics.Summarize(metrics.AllManagers(liveScope), metrics.AllExperts(liveScope))
	liveFunnel := metrics.FunnelMetrics(liveScope)

	// WHEN January is closed and re-opened
	entry, err := f.manager.ArchiveMonth(ctx, "Январь 2026")
	require.NoError(t, err)
	assert.Equal(t, "январь 2026", entry.Label)

	session := archive.NewSession(f.manager)
	state, err := session.Open(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, archive.ModeArchive, state.Mode)
	assert.Equal(t, "2026-01-01", state.Period.Start.String())

	scope, err := session.Scope(ctx)
	require.NoError(t, err)
	frozen := metrics.Summarize(metrics.AllManagers(scope), metrics.AllExperts(scope))
	frozenFunnel := metrics.FunnelMetrics(scope)

	// THEN the frozen data reproduces the live totals
	assert.Equal(t, liveTotals.Revenue.String(), frozen.Revenue.String())
	assert.Equal(t, liveTotals.RevenueUSD.String(), frozen.RevenueUSD.String())
	assert.Equal(t, liveTotals.Sales, frozen.Sales)
	assert.Equal(t, liveTotals.Managers, frozen.Managers)
	assert.Equal(t, liveTotals.Experts, frozen.Experts)
	assert.Equal(t, liveFunnel.ROMI.String(), frozenFunnel.ROMI.String())

	// AND the stored summary matches
	assert.Equal(t, "9000000", entry.Stats.Revenue.String())
	assert.Equal(t, 2, entry.Stats.Sales)
	assert.Equal(t, 2, entry.Stats.Managers)
	require.Len(t, entry.Stats.MStats, 2)
	assert.Equal(t, "m2", entry.Stats.MStats[0].ManagerID)
	require.Len(t, entry.Stats.KStats, 1)
	assert.Equal(t, "300", entry.Stats.KStats[0].BonusAmount.String())
}

func TestArchiveMonth_ClearsOnlyThatMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)

	_, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)

	data, err := f.repo.Dataset(ctx)
	require.NoError(t, err)
	require.Len(t, data.ManagerReports, 1)
	assert.Equal(t, "2026-02-02", data.ManagerReports[0].Date)
	assert.Empty(t, data.ExpertSales)
	assert.Empty(t, data.MarketingReports)
	assert.Len(t, data.Managers, 2, "roster is never archived away")
}

func TestArchiveMonth_CreditsBestManager(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)

	_, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)

	m2, err := f.repo.Manager(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, 1, m2.BestMonthCount)
	m1, err := f.repo.Manager(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, m1.BestMonthCount)
}

func TestArchiveMonth_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)

	first, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)

	// WHEN the same month is closed under another spelling
	_, err = f.manager.ArchiveMonth(ctx, "January 2026")

	// THEN it is refused and names the existing archive
	require.ErrorIs(t, err, archive.ErrArchiveExists)
	assert.True(t, generic.IsConflict(err))
	var exists *archive.ExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, first.ID, exists.ID)

	list, err := f.manager.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchiveCurrentMonth_UsesClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-01-31")
	f.seed(t)

	entry, err := f.manager.ArchiveCurrentMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "январь 2026", entry.Label)
}

func TestArchiveMonth_InvalidLabel(t *testing.T) {
	f := newFixture(t, "2026-02-10")

	_, err := f.manager.ArchiveMonth(context.Background(), "someday")
	assert.ErrorIs(t, err, generic.ErrInvalidLabel)
}

// =============================================================================
// STARTUP CHECKS
// =============================================================================

func TestDetectOrphanedMonth_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-03-05")
	f.seed(t)

	// GIVEN live January and February data in March
	// WHEN detection runs twice
	healed, err := f.manager.DetectOrphanedMonth(ctx)
	require.NoError(t, err)
	again, err := f.manager.DetectOrphanedMonth(ctx)
	require.NoError(t, err)

	// THEN both months are closed once, oldest first
	assert.Equal(t, []string{"январь 2026", "февраль 2026"}, healed)
	assert.Empty(t, again)

	data, err := f.repo.Dataset(ctx)
	require.NoError(t, err)
	assert.True(t, data.IsEmpty())
}

func TestDetectOrphanedMonth_IgnoresCurrentMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)

	healed, err := f.manager.DetectOrphanedMonth(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"январь 2026"}, healed)
}

func TestCheckRollover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-01")
	f.seed(t)

	// GIVEN a marker left on January
	require.NoError(t, f.repo.SetLastMonth(ctx, "январь 2026"))

	// WHEN the rollover check runs in February
	entry, err := f.manager.CheckRollover(ctx)
	require.NoError(t, err)

	// THEN January is closed and the marker advanced
	require.NotNil(t, entry)
	assert.Equal(t, "январь 2026", entry.Label)
	marker, ok, err := f.repo.LastMonth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "февраль 2026", marker)

	// AND a second run does nothing
	entry, err = f.manager.CheckRollover(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCheckRollover_FirstRunRecordsMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-01")
	f.seed(t)

	entry, err := f.manager.CheckRollover(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	marker, ok, err := f.repo.LastMonth(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "февраль 2026", marker)

	list, err := f.manager.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCheckRollover_AlreadyArchived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-01")
	f.seed(t)

	_, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)
	require.NoError(t, f.repo.SetLastMonth(ctx, "январь 2026"))

	entry, err := f.manager.CheckRollover(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	marker, _, err := f.repo.LastMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "февраль 2026", marker)
}

func saveLegacy(t *testing.T, f *fixture, id, label string) {
	t.Helper()
	require.NoError(t, f.store.SaveArchive(context.Background(), generic.ArchiveRecord{
		ID:    id,
		Label: label,
		Stats: json.RawMessage(`{"totalRevenue": 5000, "totalSales": 3, "note": "imported"}`),
	}))
}

func TestMigrateLegacyArchives_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)
	saveLegacy(t, f, "old", "декабрь 2025")

	// WHEN migrating twice
	first, err := f.manager.MigrateLegacyArchives(ctx)
	require.NoError(t, err)
	before, err := f.store.Archive(ctx, "old")
	require.NoError(t, err)
	second, err := f.manager.MigrateLegacyArchives(ctx)
	require.NoError(t, err)
	after, err := f.store.Archive(ctx, "old")
	require.NoError(t, err)

	// THEN the second run changes nothing
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.JSONEq(t, string(before.Stats), string(after.Stats))

	// AND the stub carries the current roster and legacy totals survive
	entry, err := f.manager.Get(ctx, "old")
	require.NoError(t, err)
	require.True(t, entry.HasDetail())
	assert.Len(t, entry.Stats.RawData.Managers, 2)
	assert.Empty(t, entry.Stats.RawData.ManagerReports)
	assert.Equal(t, "5000", entry.Stats.Revenue.String())
	assert.Contains(t, string(after.Stats), `"note"`)
}

// =============================================================================
// LOOKUP & DELETE
// =============================================================================

func TestFindByLabel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-03-10")
	f.seed(t)
	_, err := f.manager.DetectOrphanedMonth(ctx)
	require.NoError(t, err)

	tests := []struct {
		query string
		want  string
	}{
		{"январь 2026", "январь 2026"},
		{"ФЕВРАЛЬ", "февраль 2026"},
		{"Feb 2026", "февраль 2026"},
		{"янв", "январь 2026"},
		{"март", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			e, err := f.manager.FindByLabel(ctx, tt.query)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, e)
				return
			}
			require.NotNil(t, e)
			assert.Equal(t, tt.want, e.Label)
		})
	}
}

func TestList_FlagsDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)
	saveLegacy(t, f, "old", "декабрь 2025")
	_, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)

	list, err := f.manager.List(ctx)
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.False(t, list[0].HasDetail)
	assert.True(t, list[1].HasDetail)
}

func TestDelete_RequiresAdministrator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "2026-02-10")
	f.seed(t)
	entry, err := f.manager.ArchiveMonth(ctx, "январь 2026")
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.Delete(ctx, viewer, entry.ID), archive.ErrNotAdministrator)
	require.NoError(t, f.manager.Delete(ctx, admin, entry.ID))
	assert.True(t, generic.IsNotFound(f.manager.Delete(ctx, admin, entry.ID)))
}
