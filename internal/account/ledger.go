package account

import (
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"github.com/shopspring/decimal"
)

// ClosedTrade is one ledger record: the full life of a position from entry
// to final exit, including any partial exits along the way.
type ClosedTrade struct {
	ID         string
	Symbol     string
	Direction  core.Direction
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	ExitPrice  decimal.Decimal
	ExitTime   time.Time
	Size       int64
	PnL        decimal.Decimal
	RMultiple  decimal.Decimal
	ExitReason exit.Reason

	MaxFavorableR decimal.Decimal
	MaxAdverseR   decimal.Decimal
	Partials      []exit.PartialExit
}

// EquityPoint is one sample of the run's equity curve.
type EquityPoint struct {
	Time        time.Time
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	DrawdownPct decimal.Decimal
}

// newClosedTrade builds the ledger record for a fully exited position. The
// final exit must already be appended to the position's partial records so
// the P&L aggregates every fill.
func newClosedTrade(pos *exit.Position, finalPrice decimal.Decimal, at time.Time, reason exit.Reason) ClosedTrade {
	pnl := decimal.Zero
	for _, pe := range pos.PartialExits {
		qty := decimal.NewFromInt(pe.Shares)
		pnl = pnl.Add(pe.Price.Sub(pos.EntryPrice).Mul(qty).Mul(pos.Direction.Sign()))
	}

	r := decimal.Zero
	riskAmount := pos.RiskPerShare.Mul(decimal.NewFromInt(pos.OriginalSize))
	if riskAmount.IsPositive() {
		r = pnl.Div(riskAmount)
	}

	return ClosedTrade{
		ID:            pos.ID,
		Symbol:        pos.Symbol,
		Direction:     pos.Direction,
		EntryPrice:    pos.EntryPrice,
		EntryTime:     pos.EntryTime,
		ExitPrice:     finalPrice,
		ExitTime:      at,
		Size:          pos.OriginalSize,
		PnL:           pnl,
		RMultiple:     r,
		ExitReason:    reason,
		MaxFavorableR: pos.MaxFavorableR,
		MaxAdverseR:   pos.MaxAdverseR,
		Partials:      pos.PartialExits,
	}
}

// Summary holds performance statistics over the closed-trade ledger.
type Summary struct {
	TotalTrades   int
	OpenTrades    int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	TotalPnL      decimal.Decimal
	AvgR          decimal.Decimal
	Equity        decimal.Decimal
	Cash          decimal.Decimal
	MaxDrawdown   decimal.Decimal
}

// Summarize computes performance statistics from the ledger and equity curve.
func (a *Account) Summarize() Summary {
	s := Summary{
		TotalTrades: len(a.closed),
		OpenTrades:  len(a.open),
		Equity:      a.equity,
		Cash:        a.cash,
	}

	totalR := decimal.Zero
	for _, t := range a.closed {
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
		totalR = totalR.Add(t.RMultiple)
		if t.PnL.IsPositive() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
	}

	if len(a.closed) > 0 {
		n := decimal.NewFromInt(int64(len(a.closed)))
		s.WinRate = decimal.NewFromInt(int64(s.WinningTrades)).
			Div(n).Mul(decimal.NewFromInt(100))
		s.AvgR = totalR.Div(n)
	}

	for _, pt := range a.curve {
		if pt.DrawdownPct.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = pt.DrawdownPct
		}
	}
	return s
}
