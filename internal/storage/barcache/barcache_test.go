// internal/storage/barcache/barcache_test.go
package barcache

import (
	"testing"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func mkBar(symbol string, minute int) core.Bar {
	price := decimal.NewFromInt(100)
	return core.Bar{
		Symbol: symbol,
		Time:   t0.Add(time.Duration(minute) * time.Minute),
		Open:   price, High: price, Low: price, Close: price,
		Volume: 100,
	}
}

func TestCache_PutLatest(t *testing.T) {
	c := New(10)

	if _, ok := c.Latest("AAPL"); ok {
		t.Error("expected no bar for empty cache")
	}

	c.Put(mkBar("AAPL", 0))
	c.Put(mkBar("AAPL", 1))

	latest, ok := c.Latest("AAPL")
	if !ok {
		t.Fatal("expected a cached bar")
	}
	if !latest.Time.Equal(t0.Add(time.Minute)) {
		t.Errorf("expected latest bar at +1m, got %v", latest.Time)
	}
}

func TestCache_EvictsOldest(t *testing.T) {
	c := New(3)
	for i := 0; i < 5; i++ {
		c.Put(mkBar("AAPL", i))
	}

	if got := c.Len("AAPL"); got != 3 {
		t.Fatalf("expected 3 bars after eviction, got %d", got)
	}

	bars := c.Range("AAPL", t0, t0.Add(time.Hour))
	if !bars[0].Time.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("oldest surviving bar should be +2m, got %v", bars[0].Time)
	}
}

func TestCache_RangeAndIsolationBySymbol(t *testing.T) {
	c := New(10)
	c.Put(mkBar("AAPL", 0))
	c.Put(mkBar("AAPL", 5))
	c.Put(mkBar("MSFT", 1))

	bars := c.Range("AAPL", t0, t0.Add(2*time.Minute))
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar in range, got %d", len(bars))
	}

	if len(c.Symbols()) != 2 {
		t.Errorf("expected 2 symbols, got %v", c.Symbols())
	}
}

func TestCache_Clear(t *testing.T) {
	c := New(10)
	c.Put(mkBar("AAPL", 0))
	c.Clear()

	if got := c.Len("AAPL"); got != 0 {
		t.Errorf("expected empty cache after clear, got %d bars", got)
	}
}
