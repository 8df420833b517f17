package coordinator

import (
	"time"

	"github.com/backlab/simcore/internal/account"
	"github.com/backlab/simcore/internal/config"
)

// Status represents the lifecycle state of a backtest run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the run can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// BacktestRun is the top-level record for one run. It is created on
// submission and mutated only by the coordinator as the run advances; once
// terminal it never changes again.
type BacktestRun struct {
	ID     string           `json:"id"`
	Config config.RunConfig `json:"config"`
	Status Status           `json:"status"`

	Progress      float64    `json:"progress"`
	BarsProcessed int        `json:"bars_processed"`
	BarsSkipped   int        `json:"bars_skipped"`
	CurrentTime   *time.Time `json:"current_time,omitempty"`
	Error         string     `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Result bundles the outputs of a finished run for the analytics layer.
type Result struct {
	Run     BacktestRun           `json:"run"`
	Summary account.Summary       `json:"summary"`
	Ledger  []account.ClosedTrade `json:"ledger"`
	Equity  []account.EquityPoint `json:"equity"`
}
