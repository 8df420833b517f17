package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Direction represents the side of a position
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Sign returns +1 for long and -1 for short, as a decimal multiplier for P&L.
func (d Direction) Sign() decimal.Decimal {
	if d == DirectionShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// IsValid reports whether the direction is one of the known values.
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Bar represents a historical price candlestick
type Bar struct {
	Symbol string          `json:"symbol"`
	Time   time.Time       `json:"bar_time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Validate checks structural sanity of the bar. A bar failing validation is
// treated as malformed data and skipped by the replayer.
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return WrapError(ErrMalformedBar, fmt.Errorf("missing symbol"))
	}
	if b.Time.IsZero() {
		return WrapError(ErrMalformedBar, fmt.Errorf("missing timestamp"))
	}
	if b.Open.IsNegative() || b.High.IsNegative() || b.Low.IsNegative() || b.Close.IsNegative() {
		return WrapError(ErrMalformedBar, fmt.Errorf("negative price"))
	}
	if b.High.LessThan(b.Low) {
		return WrapError(ErrMalformedBar, fmt.Errorf("high %s below low %s", b.High, b.Low))
	}
	if b.Open.GreaterThan(b.High) || b.Open.LessThan(b.Low) {
		return WrapError(ErrMalformedBar, fmt.Errorf("open %s outside [%s, %s]", b.Open, b.Low, b.High))
	}
	if b.Close.GreaterThan(b.High) || b.Close.LessThan(b.Low) {
		return WrapError(ErrMalformedBar, fmt.Errorf("close %s outside [%s, %s]", b.Close, b.Low, b.High))
	}
	return nil
}

// Signal is an abstract trade entry produced by an external strategy layer.
// The simulator never judges the quality of a signal; it only simulates the
// mechanical consequences of acting on it.
type Signal struct {
	Symbol      string           `json:"symbol"`
	Direction   Direction        `json:"direction"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	StopLoss    decimal.Decimal  `json:"stop_loss"`
	TakeProfit  *decimal.Decimal `json:"take_profit,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// IsValid checks the signal has the fields required to open a position.
func (s Signal) IsValid() bool {
	return s.Symbol != "" && s.Direction.IsValid() &&
		s.EntryPrice.IsPositive() && s.StopLoss.IsPositive()
}
