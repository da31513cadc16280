/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a realistic
	sales floor: roster entities plus daily reports written through the
	same cell upserts the spreadsheet uses (so clamping applies). Dates
	are relative to the archive manager's clock.

AVAILABLE SCENARIOS:

	sales-floor:     Two managers, two experts, one marketer, five days
	                 of reports in the current month
	unclosed-month:  The sales floor plus reports in the previous month
	                 that were never archived (orphan healing demo)
	promotion-ready: A manager with enough tenure and best-month titles
	                 to pass the promotion check

HOW SCENARIOS WORK:
 1. Upsert roster entities (fixed IDs, so reloading overwrites)
 2. Write report cells day by day
 3. Everything runs in one transaction

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sales-floor"}

NOTE:

	Scenarios add to the store, they never clear it. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - records/: Record Store
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/payroll"
	"github.com/warp/sales-payroll/records"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sales-floor",
		Name:        "Sales Floor",
		Description: "Two managers, two experts and a marketer with five days of reports",
	},
	{
		ID:          "unclosed-month",
		Name:        "Unclosed Month",
		Description: "Sales floor plus last month's reports that were never archived",
	},
	{
		ID:          "promotion-ready",
		Name:        "Promotion Ready",
		Description: "A manager with six months of tenure and two best-month titles",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a demo scenario into the live store.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, *records.Repository) error
	switch req.ScenarioID {
	case "sales-floor":
		load = h.loadSalesFloorScenario
	case "unclosed-month":
		load = h.loadUnclosedMonthScenario
	case "promotion-ready":
		load = h.loadPromotionReadyScenario
	default:
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	err := generic.Atomically(ctx, h.records().Store(), func(s generic.Store) error {
		return load(ctx, h.records().With(s))
	})
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}
	h.log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadSalesFloorScenario(ctx context.Context, repo *records.Repository) error {
	if err := seedRoster(ctx, repo); err != nil {
		return err
	}
	return seedMonth(ctx, repo, h.Archives.CurrentPeriod())
}

func (h *Handler) loadUnclosedMonthScenario(ctx context.Context, repo *records.Repository) error {
	if err := h.loadSalesFloorScenario(ctx, repo); err != nil {
		return err
	}
	return seedMonth(ctx, repo, h.Archives.CurrentPeriod().PreviousMonth())
}

func (h *Handler) loadPromotionReadyScenario(ctx context.Context, repo *records.Repository) error {
	hired := h.Archives.Clock().Today().AddMonths(-6)
	_, err := repo.AddManager(ctx, payroll.Manager{
		ID:             "demo-m3",
		Name:           "Vera Sokolova",
		HireDate:       hired.String(),
		MonthPlan:      80,
		BestMonthCount: 2,
	})
	return err
}

func seedRoster(ctx context.Context, repo *records.Repository) error {
	managers := []payroll.Manager{
		{ID: "demo-m1", Name: "Anna Petrova", MonthPlan: 80},
		{ID: "demo-m2", Name: "Boris Ivanov", MonthPlan: 60},
	}
	for _, m := range managers {
		if _, err := repo.AddManager(ctx, m); err != nil {
			return err
		}
	}
	experts := []payroll.Expert{
		{ID: "demo-e1", Name: "Dmitry Volkov", MonthPlan: money(10_000_000)},
		{ID: "demo-e2", Name: "Elena Orlova", MonthPlan: money(8_000_000)},
	}
	for _, e := range experts {
		if _, err := repo.AddExpert(ctx, e); err != nil {
			return err
		}
	}
	_, err := repo.AddMarketer(ctx, payroll.Marketer{ID: "demo-k1", Name: "Irina Smirnova"})
	return err
}

// seedMonth writes five days of reports at the start of p.
func seedMonth(ctx context.Context, repo *records.Repository, p generic.Period) error {
	for i := 0; i < 5; i++ {
		date := p.Start.AddDays(i).String()
		var cells []payroll.Cell

		for j, id := range []string{"demo-m1", "demo-m2"} {
			n := func(base int) payroll.CellValue { return payroll.Text(strconv.Itoa(base + i - 2*j)) }
			cells = append(cells,
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFCallsTotal, Value: n(100 - 30*j)},
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFCallsConnected, Value: n(60)},
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFCallsQuality, Value: n(95)},
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFAppointmentsSet, Value: n(6)},
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFAppointmentsDone, Value: n(4)},
				payroll.ManagerCell{ManagerID: id, Date: date, Field: payroll.MFDiscipline, Value: payroll.Flag(i%4 != 3)},
			)
		}
		for j, id := range []string{"demo-e1", "demo-e2"} {
			cells = append(cells,
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFConductedMeetings, Value: payroll.Text(strconv.Itoa(4 - j))},
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFOffers, Value: payroll.Text(strconv.Itoa(3 - j))},
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFDealsCount, Value: payroll.Text("1")},
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFAmount, Value: payroll.Text(strconv.Itoa(1_800_000 - 300_000*j))},
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFAmountUSD, Value: payroll.Text(strconv.Itoa(2_400 - 400*j))},
				payroll.ExpertCell{ExpertID: id, Date: date, Field: payroll.EFDiscipline, Value: payroll.Flag(true)},
			)
		}
		cells = append(cells,
			payroll.MarketingCell{Date: date, Field: payroll.KFExpenses, Value: payroll.Text("350")},
			payroll.MarketingCell{Date: date, Field: payroll.KFViews, Value: payroll.Text("12000")},
			payroll.MarketingCell{Date: date, Field: payroll.KFClicks, Value: payroll.Text("480")},
			payroll.MarketingCell{Date: date, Field: payroll.KFLeads, Value: payroll.Text("40")},
			payroll.MarketingCell{Date: date, Field: payroll.KFQualLeads, Value: payroll.Text("25")},
		)

		for _, c := range cells {
			if err := repo.Upsert(ctx, c); err != nil {
				return fmt.Errorf("seed %s: %w", date, err)
			}
		}
	}
	return nil
}
