package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func validBar() Bar {
	return Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC),
		Open:   d("100"),
		High:   d("105"),
		Low:    d("99"),
		Close:  d("102"),
		Volume: 1000,
	}
}

func TestBar_Validate(t *testing.T) {
	if err := validBar().Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Bar)
	}{
		{"missing symbol", func(b *Bar) { b.Symbol = "" }},
		{"zero time", func(b *Bar) { b.Time = time.Time{} }},
		{"high below low", func(b *Bar) { b.High = d("98") }},
		{"open above high", func(b *Bar) { b.Open = d("110") }},
		{"close below low", func(b *Bar) { b.Close = d("90") }},
		{"negative price", func(b *Bar) { b.Low = d("-1") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBar()
			tc.mutate(&b)
			err := b.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrMalformedBar) {
				t.Errorf("expected ErrMalformedBar, got %v", err)
			}
		})
	}
}

func TestDirection_Sign(t *testing.T) {
	if !DirectionLong.Sign().Equal(decimal.NewFromInt(1)) {
		t.Error("long sign should be +1")
	}
	if !DirectionShort.Sign().Equal(decimal.NewFromInt(-1)) {
		t.Error("short sign should be -1")
	}
}

func TestSignal_IsValid(t *testing.T) {
	sig := Signal{
		Symbol:     "AAPL",
		Direction:  DirectionLong,
		EntryPrice: d("100"),
		StopLoss:   d("98"),
	}
	if !sig.IsValid() {
		t.Error("complete signal should be valid")
	}

	sig.Direction = "sideways"
	if sig.IsValid() {
		t.Error("unknown direction should be invalid")
	}

	sig.Direction = DirectionShort
	sig.EntryPrice = decimal.Zero
	if sig.IsValid() {
		t.Error("zero entry price should be invalid")
	}
}
