package fill

import (
	"math/rand"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// PricePolicy selects the reference price for entry fills.
type PricePolicy string

const (
	// PolicySignalPrice fills at the price carried on the signal.
	PolicySignalPrice PricePolicy = "signal_price"
	// PolicyNextBarOpen fills at the next bar's open when available.
	PolicyNextBarOpen PricePolicy = "next_bar_open"
)

// SlippageModel selects how slippage is simulated on entry.
type SlippageModel string

const (
	SlippageNone   SlippageModel = "none"
	SlippageFixed  SlippageModel = "fixed"
	SlippageRandom SlippageModel = "random"
)

// Config is the fill and slippage policy for one run.
type Config struct {
	Policy   PricePolicy
	Slippage SlippageModel
	// Amount is the fixed slippage per share, or the upper bound for the
	// random model.
	Amount decimal.Decimal
}

// DefaultConfig fills at the signal price with no slippage.
func DefaultConfig() Config {
	return Config{Policy: PolicySignalPrice, Slippage: SlippageNone}
}

// Simulator prices entries under a fill config. The random slippage model
// draws from a run-scoped seeded source so replays stay bit-exact.
type Simulator struct {
	cfg Config
	rng *rand.Rand
}

// NewSimulator creates a fill simulator. The seed only matters for the
// random slippage model.
func NewSimulator(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// DefersEntry reports whether entries wait for the symbol's next bar.
func (s *Simulator) DefersEntry() bool {
	return s.cfg.Policy == PolicyNextBarOpen
}

// EntryFill returns the fill price and the slippage applied for an entry.
// Slippage always moves against the trader: longs pay more, shorts receive
// less.
func (s *Simulator) EntryFill(signalPrice decimal.Decimal, dir core.Direction, nextBar *core.Bar) (decimal.Decimal, decimal.Decimal) {
	price := signalPrice
	if s.cfg.Policy == PolicyNextBarOpen && nextBar != nil && nextBar.Open.IsPositive() {
		price = nextBar.Open
	}

	slippage := decimal.Zero
	switch s.cfg.Slippage {
	case SlippageFixed:
		slippage = s.cfg.Amount
	case SlippageRandom:
		if s.cfg.Amount.IsPositive() {
			f, _ := s.cfg.Amount.Float64()
			slippage = decimal.NewFromFloat(s.rng.Float64() * f)
		}
	}

	if dir == core.DirectionLong {
		price = price.Add(slippage)
	} else {
		price = price.Sub(slippage)
	}
	return price, slippage
}

// StopResult reports the outcome of a stop check against one bar.
type StopResult struct {
	Hit    bool
	Price  decimal.Decimal
	Gapped bool
}

// CheckStop tests whether the bar triggers the stop. When the bar opened
// already through the stop level the fill happens at the open (gap fill);
// otherwise the fill is exactly at the stop price.
func CheckStop(dir core.Direction, stop decimal.Decimal, bar core.Bar) StopResult {
	if dir == core.DirectionLong {
		if bar.Open.LessThanOrEqual(stop) {
			return StopResult{Hit: true, Price: bar.Open, Gapped: true}
		}
		if bar.Low.LessThanOrEqual(stop) {
			return StopResult{Hit: true, Price: stop}
		}
		return StopResult{}
	}

	if bar.Open.GreaterThanOrEqual(stop) {
		return StopResult{Hit: true, Price: bar.Open, Gapped: true}
	}
	if bar.High.GreaterThanOrEqual(stop) {
		return StopResult{Hit: true, Price: stop}
	}
	return StopResult{}
}

// TargetResult reports the outcome of a target check against one bar.
type TargetResult struct {
	Hit   bool
	Price decimal.Decimal
}

// CheckTarget tests whether the bar reaches the target. Fills are always at
// the target price, even when the bar gapped past it: the conservative fill
// never credits better-than-target prices.
func CheckTarget(dir core.Direction, target decimal.Decimal, bar core.Bar) TargetResult {
	if dir == core.DirectionLong {
		if bar.High.GreaterThanOrEqual(target) {
			return TargetResult{Hit: true, Price: target}
		}
		return TargetResult{}
	}

	if bar.Low.LessThanOrEqual(target) {
		return TargetResult{Hit: true, Price: target}
	}
	return TargetResult{}
}
