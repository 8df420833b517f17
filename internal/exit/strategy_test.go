package exit

import (
	"errors"
	"strings"
	"testing"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func TestStrategy_Validate_Fixed(t *testing.T) {
	assert.NoError(t, Fixed(nil).Validate())
	assert.NoError(t, Fixed(dp("104")).Validate())

	err := Fixed(dp("-1")).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidExitStrategy))
}

func TestStrategy_Validate_Trailing(t *testing.T) {
	assert.NoError(t, Trailing(TrailFixedDistance, d("2"), decimal.Zero).Validate())
	assert.NoError(t, Trailing(TrailATRMultiple, d("1.5"), d("1")).Validate())

	err := Trailing(TrailPercent, d("0"), decimal.Zero).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distance must be positive")

	err = Trailing("magic", d("2"), decimal.Zero).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trail model")
}

func TestStrategy_Validate_ScaledPercentagesMustSumTo100(t *testing.T) {
	ok := Scaled([]ScaledTarget{
		{Price: d("102"), Percent: d("50")},
		{Price: d("106"), Percent: d("50")},
	})
	assert.NoError(t, ok.Validate())

	bad := Scaled([]ScaledTarget{
		{Price: d("102"), Percent: d("50")},
		{Price: d("106"), Percent: d("40")},
	})
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 100")
}

func TestStrategy_Validate_AggregatesAllViolations(t *testing.T) {
	bad := Scaled([]ScaledTarget{
		{Price: d("0"), Percent: d("50")},
		{Price: d("106"), Percent: d("-10"), StopAdjust: StopAdjust{Kind: "sideways"}},
	})
	err := bad.Validate()
	require.Error(t, err)

	msg := err.Error()
	// Every violation enumerated, not just the first.
	assert.Contains(t, msg, "target 0 price must be positive")
	assert.Contains(t, msg, "target 1 percent must be positive")
	assert.Contains(t, msg, "unknown stop adjustment")
	assert.Contains(t, msg, "sum to 100")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n"), 3)
}

func TestStrategy_Validate_Combined(t *testing.T) {
	s := Strategy{
		Kind:  KindCombined,
		Trail: &TrailConfig{Model: TrailPercent, Distance: d("3")},
		Targets: []ScaledTarget{
			{Price: d("102"), Percent: d("50"), StopAdjust: StopAdjust{Kind: AdjustBreakeven}},
			{Price: d("106"), Percent: d("50")},
		},
		Breakeven: &BreakevenConfig{TriggerR: d("1"), Buffer: d("0.05")},
	}
	assert.NoError(t, s.Validate())

	empty := Strategy{Kind: KindCombined}
	err := empty.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one component")
}

func TestStrategy_Validate_UnknownKind(t *testing.T) {
	err := Strategy{Kind: "martingale"}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidExitStrategy))
}
