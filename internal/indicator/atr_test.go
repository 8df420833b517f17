package indicator

import (
	"testing"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bar(high, low, close string) core.Bar {
	return core.Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC),
		Open:   d(low),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: 1,
	}
}

func TestTrueRange(t *testing.T) {
	b := bar("105", "101", "103")

	if got := TrueRange(b, nil); !got.Equal(d("4")) {
		t.Errorf("TrueRange without prev close = %s, want 4", got)
	}

	// Gap down: previous close above the bar's high dominates.
	prev := d("110")
	if got := TrueRange(b, &prev); !got.Equal(d("9")) {
		t.Errorf("TrueRange with gap = %s, want 9", got)
	}

	// Gap up: previous close below the low dominates.
	prev = d("95")
	if got := TrueRange(b, &prev); !got.Equal(d("10")) {
		t.Errorf("TrueRange with gap up = %s, want 10", got)
	}
}

func TestATR_WarmupAndSmoothing(t *testing.T) {
	atr := NewATR(3)

	if v := atr.Update(bar("102", "100", "101")); v != nil {
		t.Fatal("ATR should be nil during warm-up")
	}
	if v := atr.Update(bar("103", "101", "102")); v != nil {
		t.Fatal("ATR should be nil during warm-up")
	}

	// TRs so far: 2, max(2, |103-101|, |101-101|)=2; third bar TR=2.
	v := atr.Update(bar("104", "102", "103"))
	if v == nil || !v.Equal(d("2")) {
		t.Fatalf("ATR after warm-up = %v, want 2", v)
	}

	// Next TR = max(6, |110-103|, |104-103|) = 7; Wilder: (2*2 + 7)/3.
	v = atr.Update(bar("110", "104", "108"))
	want := d("11").Div(d("3"))
	if v == nil || !v.Equal(want) {
		t.Fatalf("smoothed ATR = %v, want %s", v, want)
	}

	if got := atr.Value(); got == nil || !got.Equal(want) {
		t.Fatalf("Value() = %v, want %s", got, want)
	}
}

func TestATR_PeriodClamped(t *testing.T) {
	atr := NewATR(0)
	if v := atr.Update(bar("102", "100", "101")); v == nil || !v.Equal(d("2")) {
		t.Fatalf("period-1 ATR should equal the first TR, got %v", v)
	}
}
