package indicator

import (
	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// TrueRange computes the bar's true range against the previous close. With
// no previous close it degrades to high minus low.
func TrueRange(bar core.Bar, prevClose *decimal.Decimal) decimal.Decimal {
	tr := bar.High.Sub(bar.Low)
	if prevClose == nil {
		return tr
	}
	if hc := bar.High.Sub(*prevClose).Abs(); hc.GreaterThan(tr) {
		tr = hc
	}
	if lc := bar.Low.Sub(*prevClose).Abs(); lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}

// ATR is a streaming Average True Range tracker (Wilder smoothing). One
// tracker serves one symbol; feed it every bar in time order.
type ATR struct {
	period    int64
	count     int64
	sum       decimal.Decimal
	value     decimal.Decimal
	prevClose *decimal.Decimal
}

// NewATR creates a tracker with the given period. Periods below 1 are
// clamped to 1.
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: int64(period)}
}

// Update feeds the next bar and returns the current ATR, or nil while the
// warm-up window is still filling.
func (a *ATR) Update(bar core.Bar) *decimal.Decimal {
	tr := TrueRange(bar, a.prevClose)
	c := bar.Close
	a.prevClose = &c

	a.count++
	period := decimal.NewFromInt(a.period)
	switch {
	case a.count < a.period:
		a.sum = a.sum.Add(tr)
		return nil
	case a.count == a.period:
		a.sum = a.sum.Add(tr)
		a.value = a.sum.Div(period)
	default:
		// Wilder smoothing.
		a.value = a.value.Mul(period.Sub(decimal.NewFromInt(1))).Add(tr).Div(period)
	}

	v := a.value
	return &v
}

// Value returns the current ATR, or nil during warm-up.
func (a *ATR) Value() *decimal.Decimal {
	if a.count < a.period {
		return nil
	}
	v := a.value
	return &v
}
