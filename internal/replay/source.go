package replay

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Source provides historical bars for a set of symbols over a date range.
// Implementations must return bars sorted ascending by time; ties between
// symbols at the same timestamp are ordered by symbol for deterministic
// interleaving.
type Source interface {
	Bars(ctx context.Context, symbols []string, start, end time.Time) ([]core.Bar, error)
}

// MemorySource serves bars from an in-memory slice. Used by tests and by
// one-shot runs that load CSV data up front.
type MemorySource struct {
	bars []core.Bar
}

// NewMemorySource copies the given bars into a new source.
func NewMemorySource(bars ...core.Bar) *MemorySource {
	out := make([]core.Bar, len(bars))
	copy(out, bars)
	return &MemorySource{bars: out}
}

// Bars returns the bars matching the symbol set and time range, sorted by
// time then symbol.
func (m *MemorySource) Bars(_ context.Context, symbols []string, start, end time.Time) ([]core.Bar, error) {
	want := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		want[s] = struct{}{}
	}

	var out []core.Bar
	for _, b := range m.bars {
		if _, ok := want[b.Symbol]; !ok {
			continue
		}
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	sortBars(out)
	return out, nil
}

func sortBars(bars []core.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Time.Equal(bars[j].Time) {
			return bars[i].Symbol < bars[j].Symbol
		}
		return bars[i].Time.Before(bars[j].Time)
	})
}

// SQLiteSource reads bars from a SQLite database with a `bars` table:
//
//	bars(symbol TEXT, bar_time INTEGER, open TEXT, high TEXT,
//	     low TEXT, close TEXT, volume INTEGER)
//
// bar_time is a Unix timestamp in seconds. Prices are stored as decimal
// strings so no float conversion happens on the way in or out.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens the bar database at path.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrDataSource, err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Bars queries the range [start, end] for the given symbols, ordered by
// time then symbol.
func (s *SQLiteSource) Bars(ctx context.Context, symbols []string, start, end time.Time) ([]core.Bar, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	query := `SELECT symbol, bar_time, open, high, low, close, volume
		FROM bars WHERE symbol IN (` + placeholders + `)
		AND bar_time >= ? AND bar_time <= ?
		ORDER BY bar_time ASC, symbol ASC`

	args := make([]any, 0, len(symbols)+2)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	args = append(args, start.Unix(), end.Unix())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrDataSource, err)
	}
	defer rows.Close()

	var out []core.Bar
	for rows.Next() {
		var (
			symbol                 string
			ts                     int64
			open, high, low, closePx string
			volume                 int64
		)
		if err := rows.Scan(&symbol, &ts, &open, &high, &low, &closePx, &volume); err != nil {
			return nil, core.WrapError(core.ErrDataSource, err)
		}
		bar, err := parseBar(symbol, ts, open, high, low, closePx, volume)
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrDataSource, err)
	}
	return out, nil
}

func parseBar(symbol string, ts int64, open, high, low, closePx string, volume int64) (core.Bar, error) {
	fields := [4]string{open, high, low, closePx}
	var prices [4]decimal.Decimal
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return core.Bar{}, core.WrapError(core.ErrDataSource, err)
		}
		prices[i] = d
	}
	return core.Bar{
		Symbol: symbol,
		Time:   time.Unix(ts, 0).UTC(),
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}
