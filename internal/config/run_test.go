package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

func validRun() RunConfig {
	return RunConfig{
		Symbols:        []string{"AAPL"},
		Start:          time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		InitialCapital: decimal.NewFromInt(100000),
		RiskPerTrade:   decimal.RequireFromString("0.01"),
	}
}

func TestRunConfig_Valid(t *testing.T) {
	rc := validRun()
	if err := rc.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestRunConfig_MissingFieldsAggregated(t *testing.T) {
	rc := RunConfig{}
	err := rc.Validate()
	if err == nil {
		t.Fatal("expected error for empty run config")
	}
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}

	// Every missing key shows up in the one error, not just the first.
	msg := err.Error()
	for _, key := range []string{"symbols", "start", "end", "initial_capital", "risk_per_trade"} {
		if !strings.Contains(msg, key) {
			t.Errorf("error should name missing key %q: %s", key, msg)
		}
	}
}

func TestRunConfig_ViolationsAggregated(t *testing.T) {
	rc := validRun()
	rc.End = rc.Start.Add(-24 * time.Hour)
	rc.RiskPerTrade = decimal.NewFromInt(2)
	rc.FillPolicy = "mid_price"

	err := rc.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	msg := err.Error()
	for _, fragment := range []string{"precedes start", "risk_per_trade", "fill_policy"} {
		if !strings.Contains(msg, fragment) {
			t.Errorf("error should report %q: %s", fragment, msg)
		}
	}
}

func TestRunConfig_EnumChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		ok     bool
	}{
		{"next bar open policy", func(rc *RunConfig) { rc.FillPolicy = "next_bar_open" }, true},
		{"random slippage", func(rc *RunConfig) { rc.SlippageModel = "random" }, true},
		{"throttled speed", func(rc *RunConfig) { rc.Speed = "throttled" }, true},
		{"bad speed", func(rc *RunConfig) { rc.Speed = "ludicrous" }, false},
		{"bad slippage model", func(rc *RunConfig) { rc.SlippageModel = "gaussian" }, false},
		{"negative throttle", func(rc *RunConfig) { rc.ThrottleMs = -5 }, false},
		{"bad timezone", func(rc *RunConfig) { rc.Timezone = "Nope/Nowhere" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := validRun()
			tt.mutate(&rc)
			err := rc.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}
