package account

import (
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenParams describes a position to open.
type OpenParams struct {
	Symbol     string
	Direction  core.Direction
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	EntryTime  time.Time
	Strategy   exit.Strategy
}

// Account is the virtual trading account for one backtest run. It owns every
// open position and the closed-trade ledger, and keeps the invariant
// equity = cash + mark-to-market value of open positions up to date on every
// open, partial close and close.
type Account struct {
	initialCapital decimal.Decimal
	cash           decimal.Decimal
	equity         decimal.Decimal
	riskPerTrade   decimal.Decimal

	open     map[string]*exit.Position
	bySymbol map[string]string
	marks    map[string]decimal.Decimal

	closed []ClosedTrade
	curve  []EquityPoint
	peak   decimal.Decimal
}

// New creates an account with the given starting capital and risk-per-trade
// fraction.
func New(initialCapital, riskPerTrade decimal.Decimal) *Account {
	return &Account{
		initialCapital: initialCapital,
		cash:           initialCapital,
		equity:         initialCapital,
		riskPerTrade:   riskPerTrade,
		open:           make(map[string]*exit.Position),
		bySymbol:       make(map[string]string),
		marks:          make(map[string]decimal.Decimal),
		peak:           initialCapital,
	}
}

// Cash returns the free cash balance.
func (a *Account) Cash() decimal.Decimal { return a.cash }

// Equity returns cash plus the mark-to-market value of open positions.
func (a *Account) Equity() decimal.Decimal { return a.equity }

// InitialCapital returns the starting balance.
func (a *Account) InitialCapital() decimal.Decimal { return a.initialCapital }

// OpenPosition validates the parameters, sizes the position from the
// account's risk fraction, deducts the notional from cash, and returns the
// new open position.
//
// Size is floor(risk amount / risk per share), capped by floor(cash / entry)
// so cash can never go negative.
func (a *Account) OpenPosition(p OpenParams) (*exit.Position, error) {
	if p.Symbol == "" || !p.Direction.IsValid() ||
		!p.EntryPrice.IsPositive() || !p.StopLoss.IsPositive() {
		return nil, core.ErrMissingParams
	}
	if p.Direction == core.DirectionLong && p.StopLoss.GreaterThanOrEqual(p.EntryPrice) {
		return nil, core.ErrInvalidStopLoss
	}
	if p.Direction == core.DirectionShort && p.StopLoss.LessThanOrEqual(p.EntryPrice) {
		return nil, core.ErrInvalidStopLoss
	}
	if _, exists := a.bySymbol[p.Symbol]; exists {
		return nil, core.ErrPositionExists
	}

	riskPerShare := p.EntryPrice.Sub(p.StopLoss).Abs()
	riskAmount := a.equity.Mul(a.riskPerTrade)

	size := riskAmount.Div(riskPerShare).Floor().IntPart()
	if cap := a.cash.Div(p.EntryPrice).Floor().IntPart(); size > cap {
		size = cap
	}
	if size <= 0 {
		return nil, core.ErrInvalidShares
	}

	pos := exit.NewPosition(uuid.NewString(), p.Symbol, p.Direction,
		p.EntryPrice, p.StopLoss, size, p.EntryTime, p.Strategy)

	a.cash = a.cash.Sub(p.EntryPrice.Mul(decimal.NewFromInt(size)))
	a.open[pos.ID] = pos
	a.bySymbol[p.Symbol] = pos.ID
	a.marks[p.Symbol] = p.EntryPrice
	a.recalcEquity()

	return pos, nil
}

// ClosePosition closes the entire remaining size at the given price, credits
// cash, and moves the trade to the closed ledger.
func (a *Account) ClosePosition(id string, price decimal.Decimal, at time.Time, reason exit.Reason) (*ClosedTrade, error) {
	pos, ok := a.open[id]
	if !ok {
		return nil, core.ErrTradeNotFound
	}
	return a.closeShares(pos, pos.RemainingSize, price, at, reason)
}

// PartialClose exits the given number of shares. Exiting every remaining
// share closes the trade fully instead of leaving it open at zero size.
func (a *Account) PartialClose(id string, shares int64, price decimal.Decimal, at time.Time, reason exit.Reason) (*ClosedTrade, error) {
	pos, ok := a.open[id]
	if !ok {
		return nil, core.ErrTradeNotFound
	}
	if shares <= 0 {
		return nil, core.ErrInvalidShares
	}
	if shares > pos.RemainingSize {
		return nil, core.ErrInsufficientShares
	}
	if shares == pos.RemainingSize {
		return a.closeShares(pos, shares, price, at, reason)
	}

	a.settle(pos, shares, price)
	pos.RemainingSize -= shares
	pos.PartialExits = append(pos.PartialExits, exit.PartialExit{
		Time:   at,
		Price:  price,
		Shares: shares,
		R:      pos.RMultiple(price),
		Reason: reason,
	})
	a.recalcEquity()
	return nil, nil
}

// UpdateStop mutates only the stop field of an open position.
func (a *Account) UpdateStop(id string, price decimal.Decimal) error {
	pos, ok := a.open[id]
	if !ok {
		return core.ErrTradeNotFound
	}
	pos.CurrentStop = price
	return nil
}

// closeShares settles the given shares and retires the position.
func (a *Account) closeShares(pos *exit.Position, shares int64, price decimal.Decimal, at time.Time, reason exit.Reason) (*ClosedTrade, error) {
	a.settle(pos, shares, price)
	pos.RemainingSize -= shares
	pos.PartialExits = append(pos.PartialExits, exit.PartialExit{
		Time:   at,
		Price:  price,
		Shares: shares,
		R:      pos.RMultiple(price),
		Reason: reason,
	})

	trade := newClosedTrade(pos, price, at, reason)
	a.closed = append(a.closed, trade)
	delete(a.open, pos.ID)
	delete(a.bySymbol, pos.Symbol)
	a.recalcEquity()
	return &trade, nil
}

// settle credits cash for exited shares: the entry notional comes back plus
// the realized P&L on those shares.
func (a *Account) settle(pos *exit.Position, shares int64, price decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(shares)
	pnl := price.Sub(pos.EntryPrice).Mul(qty).Mul(pos.Direction.Sign())
	a.cash = a.cash.Add(pos.EntryPrice.Mul(qty)).Add(pnl)
	return pnl
}

// MarkToMarket updates the last seen price for a symbol and refreshes equity.
func (a *Account) MarkToMarket(symbol string, price decimal.Decimal) {
	a.marks[symbol] = price
	a.recalcEquity()
}

// recalcEquity restores the invariant equity = cash + open position value.
func (a *Account) recalcEquity() {
	equity := a.cash
	for _, pos := range a.open {
		mark, ok := a.marks[pos.Symbol]
		if !ok {
			mark = pos.EntryPrice
		}
		qty := decimal.NewFromInt(pos.RemainingSize)
		value := pos.EntryPrice.Mul(qty).
			Add(mark.Sub(pos.EntryPrice).Mul(qty).Mul(pos.Direction.Sign()))
		equity = equity.Add(value)
	}
	a.equity = equity
	if equity.GreaterThan(a.peak) {
		a.peak = equity
	}
}

// Position returns the open position with the given trade id.
func (a *Account) Position(id string) (*exit.Position, bool) {
	pos, ok := a.open[id]
	return pos, ok
}

// PositionBySymbol returns the open position for a symbol, if any.
func (a *Account) PositionBySymbol(symbol string) (*exit.Position, bool) {
	id, ok := a.bySymbol[symbol]
	if !ok {
		return nil, false
	}
	return a.open[id], true
}

// OpenCount returns the number of open positions.
func (a *Account) OpenCount() int { return len(a.open) }

// Open returns the currently open positions in no particular order.
func (a *Account) Open() []*exit.Position {
	out := make([]*exit.Position, 0, len(a.open))
	for _, pos := range a.open {
		out = append(out, pos)
	}
	return out
}

// ClosedTrades returns the closed-trade ledger.
func (a *Account) ClosedTrades() []ClosedTrade { return a.closed }

// RecordEquity appends an equity-curve point for the given simulated time.
func (a *Account) RecordEquity(at time.Time) {
	drawdown := decimal.Zero
	if a.peak.IsPositive() {
		drawdown = a.peak.Sub(a.equity).Div(a.peak).Mul(decimal.NewFromInt(100))
	}
	a.curve = append(a.curve, EquityPoint{
		Time:        at,
		Equity:      a.equity,
		Cash:        a.cash,
		DrawdownPct: drawdown,
	})
}

// EquityCurve returns the recorded equity points.
func (a *Account) EquityCurve() []EquityPoint { return a.curve }
