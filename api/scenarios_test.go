package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/api"
	"github.com/warp/sales-payroll/metrics"
	"github.com/warp/sales-payroll/salary"
)

func TestScenario_SalesFloor(t *testing.T) {
	f := newFixture(t)

	// WHEN the scenario is loaded twice
	for i := 0; i < 2; i++ {
		rec := f.do(http.MethodPost, "/api/scenarios/load", admin, api.LoadScenarioRequest{ScenarioID: "sales-floor"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	// THEN fixed ids make it idempotent
	managers := decode[[]metrics.ManagerMetrics](t, f.do(http.MethodGet, "/api/managers/metrics", nobody, nil))
	require.Len(t, managers, 2)
	assert.Equal(t, 5, managers[0].Reports)

	experts := decode[[]salary.ExpertPay](t, f.do(http.MethodGet, "/api/experts/salary", nobody, nil))
	assert.Len(t, experts, 2)

	funnel := decode[metrics.Funnel](t, f.do(http.MethodGet, "/api/marketing/funnel", nobody, nil))
	assert.Equal(t, "1750", funnel.Expenses.String())
	assert.Equal(t, 10, funnel.Sales)
}

func TestScenario_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/scenarios/load", anna, api.LoadScenarioRequest{ScenarioID: "sales-floor"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/scenarios/load", admin, api.LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	list := decode[[]api.ScenarioDTO](t, f.do(http.MethodGet, "/api/scenarios", nobody, nil))
	assert.Len(t, list, 3)
}

func TestScenario_PromotionReady(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/scenarios/load", admin, api.LoadScenarioRequest{ScenarioID: "promotion-ready"})
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[api.PromotionResponse](t, f.do(http.MethodPost, "/api/roster/managers/demo-m3/promote", admin, nil))
	assert.True(t, got.Promoted)
}

func TestRolloverScheduler_HealsUnclosedMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.do(http.MethodPost, "/api/scenarios/load", admin, api.LoadScenarioRequest{ScenarioID: "unclosed-month"})
	require.Equal(t, http.StatusOK, rec.Code)

	sched := api.NewRolloverScheduler(f.archives, f.handler.Session, "@every 1h")

	// WHEN the check runs
	closed := sched.RunOnce(ctx)

	// THEN last month is archived and the live month keeps its reports
	assert.Equal(t, []string{"январь 2026"}, closed)
	list, err := f.archives.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 10, list[0].Sales)

	managers := decode[[]metrics.ManagerMetrics](t, f.do(http.MethodGet, "/api/managers/metrics", nobody, nil))
	assert.Len(t, managers, 2)

	// AND a second run is a no-op
	assert.Empty(t, sched.RunOnce(ctx))
}

func TestRolloverScheduler_StartStop(t *testing.T) {
	f := newFixture(t)

	bad := api.NewRolloverScheduler(f.archives, nil, "not a spec")
	assert.Error(t, bad.Start())

	sched := api.NewRolloverScheduler(f.archives, nil, "5 0 * * *")
	require.NoError(t, sched.Start())
	require.NoError(t, sched.Start())
	sched.Stop()
	sched.Stop()
}
