// internal/replay/csv.go
package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// LoadCSV reads a bar file into a MemorySource. Expected columns:
// symbol, time (RFC3339), open, high, low, close, volume. A header row
// is detected and skipped.
func LoadCSV(path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrDataSource, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7
	r.TrimLeadingSpace = true

	var bars []core.Bar
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrDataSource, err)
		}
		line++

		if line == 1 && rec[0] == "symbol" {
			continue
		}

		bar, err := parseCSVBar(rec)
		if err != nil {
			return nil, core.WrapError(core.ErrDataSource,
				fmt.Errorf("line %d: %w", line, err))
		}
		bars = append(bars, bar)
	}

	return NewMemorySource(bars...), nil
}

func parseCSVBar(rec []string) (core.Bar, error) {
	t, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return core.Bar{}, fmt.Errorf("bad time %q: %w", rec[1], err)
	}

	prices := make([]decimal.Decimal, 4)
	for i, raw := range rec[2:6] {
		px, err := decimal.NewFromString(raw)
		if err != nil {
			return core.Bar{}, fmt.Errorf("bad price %q: %w", raw, err)
		}
		prices[i] = px
	}

	vol, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return core.Bar{}, fmt.Errorf("bad volume %q: %w", rec[6], err)
	}

	return core.Bar{
		Symbol: rec[0],
		Time:   t,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: vol,
	}, nil
}
