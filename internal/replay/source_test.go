package replay

import (
	"context"
	"path/filepath"
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

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func bar(symbol string, minute int, open, high, low, close string) core.Bar {
	return core.Bar{
		Symbol: symbol,
		Time:   t0.Add(time.Duration(minute) * time.Minute),
		Open:   d(open),
		High:   d(high),
		Low:    d(low),
		Close:  d(close),
		Volume: 1000,
	}
}

func TestMemorySource_FiltersAndSorts(t *testing.T) {
	src := NewMemorySource(
		bar("MSFT", 2, "300", "301", "299", "300"),
		bar("AAPL", 0, "100", "101", "99", "100"),
		bar("MSFT", 0, "300", "301", "299", "300"),
		bar("AAPL", 5, "100", "101", "99", "100"),
		bar("TSLA", 1, "200", "201", "199", "200"),
	)

	bars, err := src.Bars(context.Background(), []string{"AAPL", "MSFT"}, t0, t0.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, bars, 3, "TSLA and the out-of-range bar are excluded")

	// Global time order, symbol breaking ties.
	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, "MSFT", bars[1].Symbol)
	assert.True(t, bars[0].Time.Equal(bars[1].Time))
	assert.Equal(t, "MSFT", bars[2].Symbol)
}

func TestMemorySource_EmptyRange(t *testing.T) {
	src := NewMemorySource(bar("AAPL", 0, "100", "101", "99", "100"))

	bars, err := src.Bars(context.Background(), []string{"AAPL"}, t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestSQLiteSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	src, err := OpenSQLite(path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.db.Exec(`CREATE TABLE bars (
		symbol TEXT NOT NULL,
		bar_time INTEGER NOT NULL,
		open TEXT NOT NULL,
		high TEXT NOT NULL,
		low TEXT NOT NULL,
		close TEXT NOT NULL,
		volume INTEGER NOT NULL
	)`)
	require.NoError(t, err)

	insert := `INSERT INTO bars (symbol, bar_time, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = src.db.Exec(insert, "AAPL", t0.Add(time.Minute).Unix(), "100.50", "101", "99.75", "100.25", 5000)
	require.NoError(t, err)
	_, err = src.db.Exec(insert, "AAPL", t0.Unix(), "100", "100.75", "99.50", "100.50", 4000)
	require.NoError(t, err)
	_, err = src.db.Exec(insert, "MSFT", t0.Unix(), "300", "301", "299", "300", 2000)
	require.NoError(t, err)

	bars, err := src.Bars(context.Background(), []string{"AAPL"}, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.True(t, bars[0].Time.Equal(t0), "rows come back time ordered")
	assert.True(t, bars[0].Open.Equal(d("100")))
	assert.True(t, bars[1].Open.Equal(d("100.50")), "decimal strings survive the round trip")
	assert.Equal(t, int64(5000), bars[1].Volume)
}

func TestSQLiteSource_NoSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.db")
	src, err := OpenSQLite(path)
	require.NoError(t, err)
	defer src.Close()

	bars, err := src.Bars(context.Background(), nil, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, bars)
}
