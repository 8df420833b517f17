package exit

import (
	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/fill"
	"github.com/shopspring/decimal"
)

// Reason identifies why an exit fired.
type Reason string

const (
	ReasonStoppedOut      Reason = "stopped_out"
	ReasonTrailingStopped Reason = "trailing_stopped"
	ReasonTargetHit       Reason = "target_hit"
	ReasonManualClose     Reason = "manual_close"
	ReasonEndOfData       Reason = "end_of_data"
)

// ActionType tags an exit-manager action.
type ActionType string

const (
	ActionFullExit    ActionType = "full_exit"
	ActionPartialExit ActionType = "partial_exit"
	ActionUpdateStop  ActionType = "update_stop"
)

// Action is one instruction produced by evaluating a bar against a position.
// Actions are ordered; the caller applies them in sequence.
type Action struct {
	Type        ActionType
	Reason      Reason
	Price       decimal.Decimal
	TargetIndex int
	Shares      int64
}

// Evaluate runs the per-bar exit state machine for one position. It updates
// the position's tracked extremes, consumed targets, breakeven flag and
// trailing stop, and returns the ordered exit/stop actions for the caller to
// apply to the account. A queued full exit short-circuits the later steps.
func Evaluate(p *Position, bar core.Bar, atr *decimal.Decimal) []Action {
	p.Track(bar)

	var actions []Action

	// Step 1: stop check. Stops always win over targets within one bar.
	if res := fill.CheckStop(p.Direction, p.CurrentStop, bar); res.Hit {
		reason := ReasonStoppedOut
		if p.TrailActive {
			reason = ReasonTrailingStopped
		}
		return append(actions, Action{
			Type:   ActionFullExit,
			Reason: reason,
			Price:  res.Price,
		})
	}

	// Step 2: targets.
	actions, fullExit := evaluateTargets(p, bar, actions)

	// Step 3: breakeven trigger, once per position.
	if !fullExit && p.Strategy.Breakeven != nil && !p.BreakevenTriggered {
		if p.MaxFavorableR.GreaterThanOrEqual(p.Strategy.Breakeven.TriggerR) {
			buffer := p.Strategy.Breakeven.Buffer.Mul(p.Direction.Sign())
			candidate := p.EntryPrice.Add(buffer)
			p.BreakevenTriggered = true
			if p.moveStop(candidate) {
				actions = append(actions, Action{
					Type:  ActionUpdateStop,
					Price: p.CurrentStop,
				})
			}
		}
	}

	// Step 4: trailing, part of the position update rather than the exit
	// queue. The stop only ever tightens.
	if !fullExit && p.Strategy.Trail != nil {
		updateTrailing(p, atr)
	}

	return actions
}

// evaluateTargets fires every not-yet-hit target reached in this bar, in
// order. Reports whether the position was fully exited.
func evaluateTargets(p *Position, bar core.Bar, actions []Action) ([]Action, bool) {
	// Fixed single target closes 100%.
	if p.Strategy.Target != nil && len(p.Strategy.Targets) == 0 {
		if res := fill.CheckTarget(p.Direction, *p.Strategy.Target, bar); res.Hit {
			return append(actions, Action{
				Type:   ActionFullExit,
				Reason: ReasonTargetHit,
				Price:  res.Price,
			}), true
		}
		return actions, false
	}

	remaining := p.RemainingSize
	for i, tgt := range p.Strategy.Targets {
		if p.TargetsHit[i] || remaining <= 0 {
			continue
		}
		res := fill.CheckTarget(p.Direction, tgt.Price, bar)
		if !res.Hit {
			continue
		}

		shares := targetShares(p, i, tgt, remaining)
		if shares <= 0 {
			continue
		}
		p.TargetsHit[i] = true

		// Stop directives apply before any later target's fill in this bar.
		applyStopAdjust(p, tgt.StopAdjust, &actions)

		remaining -= shares
		actions = append(actions, Action{
			Type:        ActionPartialExit,
			Reason:      ReasonTargetHit,
			Price:       res.Price,
			TargetIndex: i,
			Shares:      shares,
		})
	}

	return actions, remaining <= 0
}

// targetShares computes the share count for one scaled target. Intermediate
// targets take floor(percent x original); the final target absorbs whatever
// remains so the partial exits always reconcile to the original size.
func targetShares(p *Position, index int, tgt ScaledTarget, remaining int64) int64 {
	if index == len(p.Strategy.Targets)-1 {
		return remaining
	}
	shares := tgt.Percent.Div(hundred).
		Mul(decimal.NewFromInt(p.OriginalSize)).
		Floor().IntPart()
	if shares > remaining {
		shares = remaining
	}
	return shares
}

func applyStopAdjust(p *Position, adj StopAdjust, actions *[]Action) {
	var candidate decimal.Decimal
	switch adj.Kind {
	case AdjustBreakeven:
		candidate = p.EntryPrice
	case AdjustToPrice:
		candidate = adj.Price
	default:
		return
	}
	if p.moveStop(candidate) {
		*actions = append(*actions, Action{
			Type:  ActionUpdateStop,
			Price: p.CurrentStop,
		})
	}
}

// updateTrailing recomputes the candidate trail level from the configured
// distance model anchored at the bar's favorable extreme.
func updateTrailing(p *Position, atr *decimal.Decimal) {
	trail := p.Strategy.Trail

	if !p.TrailActive {
		if trail.ActivationR.IsPositive() && p.MaxFavorableR.LessThan(trail.ActivationR) {
			return
		}
		p.TrailActive = true
	}

	extreme := p.FavorableExtreme()
	var distance decimal.Decimal
	switch trail.Model {
	case TrailFixedDistance:
		distance = trail.Distance
	case TrailPercent:
		distance = extreme.Mul(trail.Distance).Div(hundred)
	case TrailATRMultiple:
		if atr == nil {
			return
		}
		distance = atr.Mul(trail.Distance)
	default:
		return
	}

	candidate := extreme.Sub(distance.Mul(p.Direction.Sign()))
	p.moveStop(candidate)
}
