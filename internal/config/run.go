package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// RunConfig describes one backtest run as submitted by a caller. It is
// deliberately transport-friendly: enum fields are plain strings and prices
// are decimals, so the same struct round-trips through JSON and flags.
type RunConfig struct {
	Symbols    []string  `json:"symbols" mapstructure:"symbols"`
	Start      time.Time `json:"start" mapstructure:"start"`
	End        time.Time `json:"end" mapstructure:"end"`
	Strategies []string  `json:"strategies,omitempty" mapstructure:"strategies"`

	InitialCapital decimal.Decimal `json:"initial_capital" mapstructure:"initial_capital"`
	RiskPerTrade   decimal.Decimal `json:"risk_per_trade" mapstructure:"risk_per_trade"`

	FillPolicy     string          `json:"fill_policy,omitempty" mapstructure:"fill_policy"`
	SlippageModel  string          `json:"slippage_model,omitempty" mapstructure:"slippage_model"`
	SlippageAmount decimal.Decimal `json:"slippage_amount,omitempty" mapstructure:"slippage_amount"`
	Seed           int64           `json:"seed,omitempty" mapstructure:"seed"`
	ATRPeriod      int             `json:"atr_period,omitempty" mapstructure:"atr_period"`

	Speed            string `json:"speed,omitempty" mapstructure:"speed"`
	ThrottleMs       int    `json:"throttle_ms,omitempty" mapstructure:"throttle_ms"`
	RegularHoursOnly bool   `json:"regular_hours_only,omitempty" mapstructure:"regular_hours_only"`
	Timezone         string `json:"timezone,omitempty" mapstructure:"timezone"`
	IsolatedCache    bool   `json:"isolated_cache,omitempty" mapstructure:"isolated_cache"`
}

// Validate checks the run configuration and reports every violation in a
// single aggregated error, not just the first one found.
func (rc *RunConfig) Validate() error {
	var missing []string
	var violations []error

	if len(rc.Symbols) == 0 {
		missing = append(missing, "symbols")
	}
	if rc.Start.IsZero() {
		missing = append(missing, "start")
	}
	if rc.End.IsZero() {
		missing = append(missing, "end")
	}
	if rc.InitialCapital.IsZero() {
		missing = append(missing, "initial_capital")
	}
	if rc.RiskPerTrade.IsZero() {
		missing = append(missing, "risk_per_trade")
	}

	if !rc.Start.IsZero() && !rc.End.IsZero() && rc.End.Before(rc.Start) {
		violations = append(violations, fmt.Errorf("end %s precedes start %s",
			rc.End.Format(time.RFC3339), rc.Start.Format(time.RFC3339)))
	}
	if !rc.InitialCapital.IsZero() && !rc.InitialCapital.IsPositive() {
		violations = append(violations, fmt.Errorf("initial_capital must be positive, got %s", rc.InitialCapital))
	}
	if !rc.RiskPerTrade.IsZero() {
		one := decimal.NewFromInt(1)
		if !rc.RiskPerTrade.IsPositive() || rc.RiskPerTrade.GreaterThan(one) {
			violations = append(violations, fmt.Errorf("risk_per_trade must be in (0, 1], got %s", rc.RiskPerTrade))
		}
	}

	switch rc.FillPolicy {
	case "", "signal_price", "next_bar_open":
	default:
		violations = append(violations, fmt.Errorf("unknown fill_policy %q", rc.FillPolicy))
	}
	switch rc.SlippageModel {
	case "", "none", "fixed", "random":
	default:
		violations = append(violations, fmt.Errorf("unknown slippage_model %q", rc.SlippageModel))
	}
	if rc.SlippageAmount.IsNegative() {
		violations = append(violations, fmt.Errorf("slippage_amount cannot be negative, got %s", rc.SlippageAmount))
	}
	switch rc.Speed {
	case "", "instant", "throttled":
	default:
		violations = append(violations, fmt.Errorf("unknown speed %q", rc.Speed))
	}
	if rc.ThrottleMs < 0 {
		violations = append(violations, fmt.Errorf("throttle_ms cannot be negative, got %d", rc.ThrottleMs))
	}
	if rc.ATRPeriod < 0 {
		violations = append(violations, fmt.Errorf("atr_period cannot be negative, got %d", rc.ATRPeriod))
	}
	if rc.Timezone != "" {
		if _, err := time.LoadLocation(rc.Timezone); err != nil {
			violations = append(violations, fmt.Errorf("unknown timezone %q", rc.Timezone))
		}
	}

	if len(missing) > 0 {
		violations = append([]error{
			fmt.Errorf("missing required fields: %s", strings.Join(missing, ", ")),
		}, violations...)
		if len(violations) == 1 {
			return core.WrapError(core.ErrConfigMissing, violations[0])
		}
	}
	if len(violations) > 0 {
		return core.WrapError(core.ErrConfigInvalid, errors.Join(violations...))
	}
	return nil
}
