package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/backlab/simcore/internal/account"
	"github.com/backlab/simcore/internal/clock"
	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"github.com/backlab/simcore/internal/fill"
	"github.com/backlab/simcore/internal/indicator"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultATRPeriod = 14

// Simulator executes one backtest run's trades: it accepts signals, drives
// the exit state machine on every bar, and applies the resulting fills to
// the virtual account. Signal submission and bar processing are synchronous
// and serialized, so within a run nothing races.
type Simulator struct {
	mu sync.Mutex

	log     *zap.Logger
	clock   *clock.Clock
	account *account.Account
	filler  *fill.Simulator

	symbols   map[string]struct{}
	pending   map[string]pendingEntry
	atr       map[string]*indicator.ATR
	lastClose map[string]decimal.Decimal
	lastTime  map[string]time.Time
	period    int
}

type pendingEntry struct {
	signal   core.Signal
	strategy exit.Strategy
}

// New creates a simulator for the given tracked symbols.
func New(acct *account.Account, clk *clock.Clock, fillCfg fill.Config, seed int64, atrPeriod int, symbols []string, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	if atrPeriod <= 0 {
		atrPeriod = defaultATRPeriod
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &Simulator{
		log:       log,
		clock:     clk,
		account:   acct,
		filler:    fill.NewSimulator(fillCfg, seed),
		symbols:   set,
		pending:   make(map[string]pendingEntry),
		atr:       make(map[string]*indicator.ATR),
		lastClose: make(map[string]decimal.Decimal),
		lastTime:  make(map[string]time.Time),
		period:    atrPeriod,
	}
}

// SubmitSignal validates the signal and opens a position when no conflicting
// position exists for the symbol. A nil strategy synthesizes a fixed
// strategy from the signal's stop loss and take profit. Under the
// next-bar-open fill policy the entry is deferred until the symbol's next
// bar arrives.
func (s *Simulator) SubmitSignal(sig core.Signal, strategy *exit.Strategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sig.IsValid() {
		return core.ErrMissingParams
	}
	if _, ok := s.symbols[sig.Symbol]; !ok {
		return core.ErrUntrackedSymbol
	}
	if _, open := s.account.PositionBySymbol(sig.Symbol); open {
		return core.ErrPositionExists
	}
	if _, queued := s.pending[sig.Symbol]; queued {
		return core.ErrPositionExists
	}

	st := synthesizeStrategy(sig, strategy)
	if err := st.Validate(); err != nil {
		return err
	}

	if s.filler.DefersEntry() {
		s.pending[sig.Symbol] = pendingEntry{signal: sig, strategy: st}
		return nil
	}
	return s.openFromSignal(sig, st, nil)
}

// AdvanceClock moves the run's virtual clock to t. The replayer routes
// every advance through here so clock writes happen inside the same
// critical section that signal submission reads the clock under.
func (s *Simulator) AdvanceClock(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock.Advance(t)
}

// ProcessBar evaluates one bar against the symbol's open position and
// applies the exit manager's actions in order. Bars for symbols without an
// open position are accepted as no-ops beyond mark-to-market tracking.
func (s *Simulator) ProcessBar(bar core.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := bar.Validate(); err != nil {
		return err
	}
	if _, ok := s.symbols[bar.Symbol]; !ok {
		return core.ErrUntrackedSymbol
	}
	if prev, ok := s.lastTime[bar.Symbol]; ok && bar.Time.Before(prev) {
		return core.WrapError(core.ErrMalformedBar,
			fmt.Errorf("bar at %s precedes previous bar at %s",
				bar.Time.Format(time.RFC3339), prev.Format(time.RFC3339)))
	}
	s.lastTime[bar.Symbol] = bar.Time

	if entry, ok := s.pending[bar.Symbol]; ok {
		delete(s.pending, bar.Symbol)
		if err := s.openFromSignal(entry.signal, entry.strategy, &bar); err != nil {
			s.log.Warn("deferred entry failed",
				zap.String("symbol", bar.Symbol), zap.Error(err))
		}
	}

	atrValue := s.trackATR(bar)

	if pos, open := s.account.PositionBySymbol(bar.Symbol); open {
		actions := exit.Evaluate(pos, bar, atrValue)
		if err := s.applyActions(pos.ID, bar, actions); err != nil {
			return err
		}
	}

	s.lastClose[bar.Symbol] = bar.Close
	s.account.MarkToMarket(bar.Symbol, bar.Close)
	s.account.RecordEquity(bar.Time)
	return nil
}

// CloseAll force-closes every open position at its last seen close price and
// drops any pending deferred entries. Used when replay runs out of bars with
// positions still open.
func (s *Simulator) CloseAll(at time.Time, reason exit.Reason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.account.Open()
	for _, pos := range open {
		price, ok := s.lastClose[pos.Symbol]
		if !ok {
			price = pos.EntryPrice
		}
		trade, err := s.account.ClosePosition(pos.ID, price, at, reason)
		if err != nil {
			return err
		}
		s.log.Debug("position force closed",
			zap.String("symbol", trade.Symbol),
			zap.String("reason", string(reason)),
			zap.String("pnl", trade.PnL.String()))
	}
	s.pending = make(map[string]pendingEntry)
	if len(open) > 0 {
		s.account.RecordEquity(at)
	}
	return nil
}

func (s *Simulator) applyActions(tradeID string, bar core.Bar, actions []exit.Action) error {
	for _, action := range actions {
		switch action.Type {
		case exit.ActionFullExit:
			trade, err := s.account.ClosePosition(tradeID, action.Price, bar.Time, action.Reason)
			if err != nil {
				return err
			}
			s.log.Debug("position closed",
				zap.String("symbol", trade.Symbol),
				zap.String("reason", string(action.Reason)),
				zap.String("pnl", trade.PnL.String()))
		case exit.ActionPartialExit:
			if _, err := s.account.PartialClose(tradeID, action.Shares, action.Price, bar.Time, action.Reason); err != nil {
				return err
			}
			s.log.Debug("partial exit",
				zap.String("symbol", bar.Symbol),
				zap.Int("target", action.TargetIndex),
				zap.Int64("shares", action.Shares))
		case exit.ActionUpdateStop:
			if err := s.account.UpdateStop(tradeID, action.Price); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Simulator) openFromSignal(sig core.Signal, strategy exit.Strategy, nextBar *core.Bar) error {
	price, slippage := s.filler.EntryFill(sig.EntryPrice, sig.Direction, nextBar)

	entryTime := sig.GeneratedAt
	if now := s.clock.Now(); now != nil {
		entryTime = *now
	}

	pos, err := s.account.OpenPosition(account.OpenParams{
		Symbol:     sig.Symbol,
		Direction:  sig.Direction,
		EntryPrice: price,
		StopLoss:   sig.StopLoss,
		EntryTime:  entryTime,
		Strategy:   strategy,
	})
	if err != nil {
		return err
	}

	s.log.Debug("position opened",
		zap.String("symbol", pos.Symbol),
		zap.String("direction", string(pos.Direction)),
		zap.String("entry", price.String()),
		zap.String("slippage", slippage.String()),
		zap.Int64("size", pos.OriginalSize))
	return nil
}

func (s *Simulator) trackATR(bar core.Bar) *decimal.Decimal {
	tracker, ok := s.atr[bar.Symbol]
	if !ok {
		tracker = indicator.NewATR(s.period)
		s.atr[bar.Symbol] = tracker
	}
	return tracker.Update(bar)
}

// synthesizeStrategy falls back to a fixed stop/target strategy when the
// signal carries no explicit exit strategy.
func synthesizeStrategy(sig core.Signal, strategy *exit.Strategy) exit.Strategy {
	if strategy != nil {
		return *strategy
	}
	return exit.Fixed(sig.TakeProfit)
}

// AccountSnapshot is a point-in-time view of account state.
type AccountSnapshot struct {
	Cash          decimal.Decimal `json:"cash"`
	Equity        decimal.Decimal `json:"equity"`
	OpenPositions int             `json:"open_positions"`
	ClosedTrades  int             `json:"closed_trades"`
}

// AccountSnapshot returns the current cash, equity, and position counts.
func (s *Simulator) AccountSnapshot() AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccountSnapshot{
		Cash:          s.account.Cash(),
		Equity:        s.account.Equity(),
		OpenPositions: s.account.OpenCount(),
		ClosedTrades:  len(s.account.ClosedTrades()),
	}
}

// Summary returns a read-only performance snapshot.
func (s *Simulator) Summary() account.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Summarize()
}

// Ledger returns a copy of the closed-trade ledger.
func (s *Simulator) Ledger() []account.ClosedTrade {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := s.account.ClosedTrades()
	out := make([]account.ClosedTrade, len(trades))
	copy(out, trades)
	return out
}

// EquityCurve returns a copy of the recorded equity points.
func (s *Simulator) EquityCurve() []account.EquityPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	curve := s.account.EquityCurve()
	out := make([]account.EquityPoint, len(curve))
	copy(out, curve)
	return out
}

// OpenPositions returns the number of currently open positions.
func (s *Simulator) OpenPositions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.OpenCount()
}
