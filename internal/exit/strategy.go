package exit

import (
	"errors"
	"fmt"

	"github.com/backlab/simcore/internal/core"
	"github.com/shopspring/decimal"
)

// Kind tags the exit strategy variant.
type Kind string

const (
	KindFixed     Kind = "fixed"
	KindTrailing  Kind = "trailing"
	KindScaled    Kind = "scaled"
	KindBreakeven Kind = "breakeven"
	KindCombined  Kind = "combined"
)

// TrailModel selects how the trailing distance is derived.
type TrailModel string

const (
	TrailFixedDistance TrailModel = "fixed_distance"
	TrailPercent       TrailModel = "percent"
	TrailATRMultiple   TrailModel = "atr_multiple"
)

// TrailConfig describes a trailing stop component.
type TrailConfig struct {
	Model    TrailModel      `json:"model"`
	Distance decimal.Decimal `json:"distance"`
	// ActivationR is the favorable R-multiple below which trailing stays
	// inactive. Zero activates trailing immediately.
	ActivationR decimal.Decimal `json:"activation_r"`
}

// StopAdjustKind tags a scaled target's stop directive.
type StopAdjustKind string

const (
	AdjustNone      StopAdjustKind = "none"
	AdjustBreakeven StopAdjustKind = "breakeven"
	AdjustToPrice   StopAdjustKind = "to_price"
)

// StopAdjust is the stop directive attached to a scaled target.
type StopAdjust struct {
	Kind  StopAdjustKind  `json:"kind"`
	Price decimal.Decimal `json:"price,omitempty"` // only for AdjustToPrice
}

// ScaledTarget is one rung of a scaled exit: a price, the percentage of the
// original position to close there, and an optional stop directive applied
// when it fires.
type ScaledTarget struct {
	Price      decimal.Decimal `json:"price"`
	Percent    decimal.Decimal `json:"percent"`
	StopAdjust StopAdjust      `json:"stop_adjust,omitempty"`
}

// BreakevenConfig moves the stop to entry (plus a buffer) once the position
// reaches the trigger R-multiple.
type BreakevenConfig struct {
	TriggerR decimal.Decimal `json:"trigger_r"`
	Buffer   decimal.Decimal `json:"buffer"`
}

// Strategy is a tagged exit configuration. The combined variant composes the
// same trailing/scaled/breakeven fields rather than being its own shape, so
// the manager evaluates every variant through one code path.
type Strategy struct {
	Kind      Kind             `json:"kind"`
	Target    *decimal.Decimal `json:"target,omitempty"` // fixed: optional single 100% target
	Trail     *TrailConfig     `json:"trail,omitempty"`
	Targets   []ScaledTarget   `json:"targets,omitempty"`
	Breakeven *BreakevenConfig `json:"breakeven,omitempty"`
}

// Fixed builds a plain stop-plus-optional-target strategy.
func Fixed(target *decimal.Decimal) Strategy {
	return Strategy{Kind: KindFixed, Target: target}
}

// Trailing builds a trailing-stop strategy.
func Trailing(model TrailModel, distance, activationR decimal.Decimal) Strategy {
	return Strategy{Kind: KindTrailing, Trail: &TrailConfig{
		Model:       model,
		Distance:    distance,
		ActivationR: activationR,
	}}
}

// Scaled builds a multi-target partial-exit strategy.
func Scaled(targets []ScaledTarget) Strategy {
	return Strategy{Kind: KindScaled, Targets: targets}
}

var hundred = decimal.NewFromInt(100)

// Validate checks the configuration shape, collecting every violation into
// one aggregated error rather than stopping at the first.
func (s Strategy) Validate() error {
	var violations []error

	switch s.Kind {
	case KindFixed:
		if s.Target != nil && !s.Target.IsPositive() {
			violations = append(violations, fmt.Errorf("fixed target must be positive, got %s", s.Target))
		}
	case KindTrailing:
		violations = append(violations, s.validateTrail()...)
	case KindScaled:
		violations = append(violations, s.validateScaled()...)
	case KindBreakeven:
		if s.Breakeven == nil {
			violations = append(violations, fmt.Errorf("breakeven strategy requires a breakeven config"))
		}
		if len(s.Targets) > 0 {
			violations = append(violations, s.validateScaled()...)
		} else if s.Target != nil && !s.Target.IsPositive() {
			violations = append(violations, fmt.Errorf("fixed target must be positive, got %s", s.Target))
		}
		violations = append(violations, s.validateBreakeven()...)
	case KindCombined:
		if s.Trail == nil && len(s.Targets) == 0 && s.Breakeven == nil {
			violations = append(violations, fmt.Errorf("combined strategy requires at least one component"))
		}
		if s.Trail != nil {
			violations = append(violations, s.validateTrail()...)
		}
		if len(s.Targets) > 0 {
			violations = append(violations, s.validateScaled()...)
		}
		if s.Breakeven != nil {
			violations = append(violations, s.validateBreakeven()...)
		}
	default:
		violations = append(violations, fmt.Errorf("unknown strategy kind %q", s.Kind))
	}

	if len(violations) == 0 {
		return nil
	}
	return core.WrapError(core.ErrInvalidExitStrategy, errors.Join(violations...))
}

func (s Strategy) validateTrail() []error {
	var violations []error
	t := s.Trail
	if t == nil {
		return []error{fmt.Errorf("trailing strategy requires a trail config")}
	}
	switch t.Model {
	case TrailFixedDistance, TrailPercent, TrailATRMultiple:
	default:
		violations = append(violations, fmt.Errorf("unknown trail model %q", t.Model))
	}
	if !t.Distance.IsPositive() {
		violations = append(violations, fmt.Errorf("trail distance must be positive, got %s", t.Distance))
	}
	if t.ActivationR.IsNegative() {
		violations = append(violations, fmt.Errorf("trail activation R cannot be negative, got %s", t.ActivationR))
	}
	return violations
}

func (s Strategy) validateScaled() []error {
	var violations []error
	if len(s.Targets) == 0 {
		return []error{fmt.Errorf("scaled strategy requires at least one target")}
	}
	sum := decimal.Zero
	for i, tgt := range s.Targets {
		if !tgt.Price.IsPositive() {
			violations = append(violations, fmt.Errorf("target %d price must be positive, got %s", i, tgt.Price))
		}
		if !tgt.Percent.IsPositive() {
			violations = append(violations, fmt.Errorf("target %d percent must be positive, got %s", i, tgt.Percent))
		}
		switch tgt.StopAdjust.Kind {
		case "", AdjustNone, AdjustBreakeven:
		case AdjustToPrice:
			if !tgt.StopAdjust.Price.IsPositive() {
				violations = append(violations, fmt.Errorf("target %d stop adjustment price must be positive", i))
			}
		default:
			violations = append(violations, fmt.Errorf("target %d has unknown stop adjustment %q", i, tgt.StopAdjust.Kind))
		}
		sum = sum.Add(tgt.Percent)
	}
	// Exactly 100, never silently normalized.
	if !sum.Equal(hundred) {
		violations = append(violations, fmt.Errorf("scaled target percentages must sum to 100, got %s", sum))
	}
	return violations
}

func (s Strategy) validateBreakeven() []error {
	var violations []error
	b := s.Breakeven
	if b == nil {
		return nil
	}
	if !b.TriggerR.IsPositive() {
		violations = append(violations, fmt.Errorf("breakeven trigger R must be positive, got %s", b.TriggerR))
	}
	if b.Buffer.IsNegative() {
		violations = append(violations, fmt.Errorf("breakeven buffer cannot be negative, got %s", b.Buffer))
	}
	return violations
}

// HasTrailing reports whether the strategy carries a trailing component.
func (s Strategy) HasTrailing() bool {
	return s.Trail != nil
}
