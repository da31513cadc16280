package factory_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sales-payroll/factory"
	"github.com/warp/sales-payroll/salary"
)

func TestParsePlan_EmptyKeepsDefaults(t *testing.T) {
	cfg, err := factory.NewPlanFactory().ParsePlan(`{}`)
	require.NoError(t, err)

	assert.Equal(t, salary.DefaultConfig(), cfg)
}

func TestParsePlan_OverridesAndSortsTables(t *testing.T) {
	plan := `{
		"manager": {
			"bonus_per_done": 150000,
			"weekly_ladder": [{"threshold": 10, "bonus": 50000}, {"threshold": 30, "bonus": 500000}]
		},
		"expert": {
			"commission_tiers": [
				{"name": "TOP", "rate": 0.1},
				{"name": "BASE", "below": 100, "rate": 0.04}
			]
		},
		"marketer": {"roi_table": [{"min_roi": 100, "percent": 1}, {"min_roi": 500, "percent": 10}]}
	}`

	cfg, err := factory.NewPlanFactory().ParsePlan(plan)
	require.NoError(t, err)

	assert.True(t, cfg.Manager.BonusPerDone.Equal(decimal.NewFromInt(150000)))
	assert.True(t, cfg.Manager.HardSalary.Equal(decimal.NewFromInt(1000000)), "untouched field keeps default")

	require.Len(t, cfg.Manager.WeeklyLadder, 2)
	assert.Equal(t, 30, cfg.Manager.WeeklyLadder[0].Threshold)

	require.Len(t, cfg.Expert.Tiers, 2)
	assert.Equal(t, "BASE", cfg.Expert.Tiers[0].Name)
	assert.Equal(t, "TOP", cfg.Expert.Tier(decimal.NewFromInt(100)).Name)

	assert.True(t, cfg.Marketer.BonusPercent(decimal.NewFromInt(600)).Equal(decimal.NewFromInt(10)))
}

func TestParsePlan_Invalid(t *testing.T) {
	f := factory.NewPlanFactory()

	_, err := f.ParsePlan(`{"expert": {"commission_tiers": [{"rate": 0.1}, {"rate": 0.2}]}}`)
	assert.ErrorIs(t, err, factory.ErrInvalidPlan)

	_, err = f.ParsePlan(`{"manager": {"hard_salary": -1}}`)
	var planErr *factory.PlanError
	require.ErrorAs(t, err, &planErr)
	assert.Equal(t, "manager.hard_salary", planErr.Field)

	_, err = f.ParsePlan(`not json`)
	assert.Error(t, err)
}

func TestToJSON_RoundTripsThroughFile(t *testing.T) {
	f := factory.NewPlanFactory()
	want := salary.DefaultConfig()

	body, err := json.Marshal(f.ToJSON("standard", want))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, body, 0644))

	got, err := f.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, len(want.Expert.Tiers), len(got.Expert.Tiers))
	assert.True(t, got.Expert.Tiers[0].Below.Equal(*want.Expert.Tiers[0].Below))
	assert.Equal(t, len(want.Marketer.ROITable), len(got.Marketer.ROITable))
	assert.True(t, got.Manager.PromotedFix.Equal(want.Manager.PromotedFix))
}
