package fill

import (
	"testing"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bar(open, high, low, close string) core.Bar {
	return core.Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC),
		Open:   d(open),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: 1000,
	}
}

func TestEntryFill_SignalPrice(t *testing.T) {
	s := NewSimulator(DefaultConfig(), 1)
	price, slip := s.EntryFill(d("100"), core.DirectionLong, nil)
	assert.True(t, price.Equal(d("100")))
	assert.True(t, slip.IsZero())
}

func TestEntryFill_NextBarOpen(t *testing.T) {
	s := NewSimulator(Config{Policy: PolicyNextBarOpen, Slippage: SlippageNone}, 1)
	next := bar("101.5", "103", "101", "102")

	price, _ := s.EntryFill(d("100"), core.DirectionLong, &next)
	assert.True(t, price.Equal(d("101.5")), "should fill at next bar open")

	// Falls back to signal price when no next bar exists.
	price, _ = s.EntryFill(d("100"), core.DirectionLong, nil)
	assert.True(t, price.Equal(d("100")))
}

func TestEntryFill_FixedSlippageIsDirectional(t *testing.T) {
	cfg := Config{Policy: PolicySignalPrice, Slippage: SlippageFixed, Amount: d("0.05")}
	s := NewSimulator(cfg, 1)

	long, slip := s.EntryFill(d("100"), core.DirectionLong, nil)
	assert.True(t, long.Equal(d("100.05")), "long pays more")
	assert.True(t, slip.Equal(d("0.05")))

	short, _ := s.EntryFill(d("100"), core.DirectionShort, nil)
	assert.True(t, short.Equal(d("99.95")), "short receives less")
}

func TestEntryFill_RandomSlippageBoundedAndDeterministic(t *testing.T) {
	cfg := Config{Policy: PolicySignalPrice, Slippage: SlippageRandom, Amount: d("0.10")}

	a := NewSimulator(cfg, 42)
	b := NewSimulator(cfg, 42)

	for i := 0; i < 50; i++ {
		priceA, slipA := a.EntryFill(d("100"), core.DirectionLong, nil)
		priceB, slipB := b.EntryFill(d("100"), core.DirectionLong, nil)

		require.True(t, priceA.Equal(priceB), "same seed must reproduce fills")
		assert.False(t, slipA.IsNegative())
		assert.True(t, slipA.LessThanOrEqual(d("0.10")), "slippage exceeds bound: %s", slipA)
		assert.True(t, priceA.GreaterThanOrEqual(d("100")), "long slippage must cost, not pay")
		_ = slipB
	}
}

func TestCheckStop_Long(t *testing.T) {
	stop := d("98")

	t.Run("not hit", func(t *testing.T) {
		res := CheckStop(core.DirectionLong, stop, bar("100", "101", "98.5", "100.5"))
		assert.False(t, res.Hit)
	})

	t.Run("intrabar fill at stop", func(t *testing.T) {
		res := CheckStop(core.DirectionLong, stop, bar("100", "101", "97.5", "99"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(stop), "non-gap fill must be exactly at stop")
		assert.False(t, res.Gapped)
	})

	t.Run("gap through fills at open", func(t *testing.T) {
		res := CheckStop(core.DirectionLong, stop, bar("96", "96.5", "95.5", "96"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(d("96")), "gap fill must use bar open")
		assert.True(t, res.Gapped)
	})
}

func TestCheckStop_Short(t *testing.T) {
	stop := d("102")

	t.Run("intrabar fill at stop", func(t *testing.T) {
		res := CheckStop(core.DirectionShort, stop, bar("100", "102.5", "99.5", "101"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(stop))
		assert.False(t, res.Gapped)
	})

	t.Run("gap up fills at open", func(t *testing.T) {
		res := CheckStop(core.DirectionShort, stop, bar("104", "105", "103.5", "104.5"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(d("104")))
		assert.True(t, res.Gapped)
	})
}

func TestCheckTarget_ConservativeFill(t *testing.T) {
	target := d("104")

	t.Run("long intrabar", func(t *testing.T) {
		res := CheckTarget(core.DirectionLong, target, bar("102", "104.5", "101.5", "104"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(target))
	})

	t.Run("long gap past target still fills at target", func(t *testing.T) {
		res := CheckTarget(core.DirectionLong, target, bar("106", "107", "105", "106.5"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(target), "no gap distinction for targets")
	})

	t.Run("short", func(t *testing.T) {
		res := CheckTarget(core.DirectionShort, d("96"), bar("97", "98", "95.5", "96.5"))
		require.True(t, res.Hit)
		assert.True(t, res.Price.Equal(d("96")))
	})

	t.Run("not reached", func(t *testing.T) {
		res := CheckTarget(core.DirectionLong, target, bar("102", "103.5", "101.5", "103"))
		assert.False(t, res.Hit)
	})
}
