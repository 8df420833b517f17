package exit

import (
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// PartialExit records one partial close of a position.
type PartialExit struct {
	Time   time.Time
	Price  decimal.Decimal
	Shares int64
	R      decimal.Decimal
	Reason Reason
}

// Position is the mutable per-trade state tracked over the life of one open
// position and carried into the closed-trade ledger when it closes.
type Position struct {
	ID         string
	Symbol     string
	Direction  core.Direction
	EntryPrice decimal.Decimal
	EntryTime  time.Time

	OriginalSize  int64
	RemainingSize int64

	// RiskPerShare is |entry - initial stop| and never changes after entry.
	RiskPerShare decimal.Decimal
	InitialStop  decimal.Decimal
	CurrentStop  decimal.Decimal

	HighestPrice  decimal.Decimal
	LowestPrice   decimal.Decimal
	MaxFavorableR decimal.Decimal
	MaxAdverseR   decimal.Decimal

	TargetsHit         map[int]bool
	PartialExits       []PartialExit
	BreakevenTriggered bool
	TrailActive        bool

	Strategy Strategy
}

// NewPosition creates position state for a freshly opened trade.
func NewPosition(id, symbol string, dir core.Direction, entry, stop decimal.Decimal, size int64, entryTime time.Time, strategy Strategy) *Position {
	return &Position{
		ID:            id,
		Symbol:        symbol,
		Direction:     dir,
		EntryPrice:    entry,
		EntryTime:     entryTime,
		OriginalSize:  size,
		RemainingSize: size,
		RiskPerShare:  entry.Sub(stop).Abs(),
		InitialStop:   stop,
		CurrentStop:   stop,
		HighestPrice:  entry,
		LowestPrice:   entry,
		TargetsHit:    make(map[int]bool),
		Strategy:      strategy,
	}
}

// Track updates price extremes and the max favorable/adverse R excursions
// from the bar. Runs every bar regardless of whether any exit fires.
func (p *Position) Track(bar core.Bar) {
	if bar.High.GreaterThan(p.HighestPrice) {
		p.HighestPrice = bar.High
	}
	if bar.Low.LessThan(p.LowestPrice) {
		p.LowestPrice = bar.Low
	}

	var favorable, adverse decimal.Decimal
	if p.Direction == core.DirectionLong {
		favorable = p.RMultiple(bar.High)
		adverse = p.RMultiple(bar.Low)
	} else {
		favorable = p.RMultiple(bar.Low)
		adverse = p.RMultiple(bar.High)
	}
	if favorable.GreaterThan(p.MaxFavorableR) {
		p.MaxFavorableR = favorable
	}
	if adverse.LessThan(p.MaxAdverseR) {
		p.MaxAdverseR = adverse
	}
}

// RMultiple expresses the given price as an R-multiple from entry: positive
// when favorable to the position, negative when adverse.
func (p *Position) RMultiple(price decimal.Decimal) decimal.Decimal {
	if p.RiskPerShare.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.EntryPrice).Mul(p.Direction.Sign()).Div(p.RiskPerShare)
}

// FavorableExtreme returns the best price seen so far for the direction.
func (p *Position) FavorableExtreme() decimal.Decimal {
	if p.Direction == core.DirectionLong {
		return p.HighestPrice
	}
	return p.LowestPrice
}

// moveStop applies a candidate stop only if it is more favorable than the
// current one. The stop never retreats.
func (p *Position) moveStop(candidate decimal.Decimal) bool {
	if p.Direction == core.DirectionLong {
		if candidate.GreaterThan(p.CurrentStop) {
			p.CurrentStop = candidate
			return true
		}
		return false
	}
	if candidate.LessThan(p.CurrentStop) {
		p.CurrentStop = candidate
		return true
	}
	return false
}
