package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// CLAMPING - malformed input becomes 0, never an error
// =============================================================================

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"100", 100},
		{" 1 200 ", 1200},
		{"12.9", 12},
		{"-5", 0},
		{"abc", 0},
		{"", 0},
		{"7 звонков", 7},
		{"3,5", 3},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.ParseCount(tt.raw))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"9000000", "9000000"},
		{"1 500,50", "1500.5"},
		{".5", "0.5"},
		{"12.", "12"},
		{"-100", "0"},
		{"n/a", "0"},
		{"$250.75", "250.75"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := generic.ParseAmount(tt.raw)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestClampIsIdempotent(t *testing.T) {
	assert.Equal(t, 0, generic.ClampCount(generic.ClampCount(-3)))
	assert.Equal(t, 4, generic.ClampCount(generic.ClampCount(4)))

	neg := decimal.NewFromInt(-10)
	assert.True(t, generic.ClampAmount(generic.ClampAmount(neg)).IsZero())
}

// =============================================================================
// ZERO-SAFE RATIOS
// =============================================================================

func TestPercent_ZeroDenominator(t *testing.T) {
	assert.True(t, generic.PercentInt(5, 0).IsZero())
	assert.True(t, generic.Percent(decimal.NewFromInt(10), decimal.NewFromInt(-1)).IsZero())
	assert.True(t, generic.Ratio(decimal.NewFromInt(10), decimal.Zero).IsZero())
	assert.True(t, generic.RatioInt(decimal.NewFromInt(10), 0).IsZero())
}

func TestPercent_RoundsToTwoPlaces(t *testing.T) {
	assert.Equal(t, "33.33", generic.PercentInt(1, 3).StringFixed(2))
	assert.Equal(t, "80", generic.PercentInt(4, 5).String())
	assert.Equal(t, "90", generic.Percent(
		decimal.NewFromInt(9_000_000), decimal.NewFromInt(10_000_000)).String())
}
