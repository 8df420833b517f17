package replay

import (
	"context"
	"sync"
	"time"

	"github.com/backlab/simcore/internal/clock"
	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"github.com/backlab/simcore/internal/sim"
	"go.uber.org/zap"
)

// Status is the replayer lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Speed selects the playback pacing mode.
type Speed string

const (
	SpeedInstant   Speed = "instant"
	SpeedThrottled Speed = "throttled"
)

const defaultThrottleInterval = 100 * time.Millisecond

// Config controls one replay pass.
type Config struct {
	Symbols []string
	Start   time.Time
	End     time.Time

	Speed            Speed
	ThrottleInterval time.Duration
	RegularHoursOnly bool
}

// Progress is a point-in-time snapshot of replay state.
type Progress struct {
	Status        Status     `json:"status"`
	BarsProcessed int        `json:"bars_processed"`
	BarsSkipped   int        `json:"bars_skipped"`
	TotalBars     int        `json:"total_bars"`
	PctComplete   float64    `json:"pct_complete"`
	CurrentTime   *time.Time `json:"current_time,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Replayer drives one run forward: it iterates historical bars in global
// time order across all symbols, advances the run's clock to each bar's
// timestamp, and hands the bar to the trade simulator. It is the only
// component that mutates the clock or pushes bars, so bar processing within
// a run is strictly sequential.
type Replayer struct {
	mu sync.RWMutex

	log *zap.Logger
	cfg Config
	src Source
	clk *clock.Clock
	sim *sim.Simulator

	status    Status
	processed int
	skipped   int
	total     int
	current   *time.Time
	err       error

	pauseCh  chan struct{}
	resumeCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds an idle replayer. Start launches the replay goroutine.
func New(src Source, clk *clock.Clock, simulator *sim.Simulator, cfg Config, log *zap.Logger) *Replayer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Speed == "" {
		cfg.Speed = SpeedInstant
	}
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = defaultThrottleInterval
	}
	return &Replayer{
		log:      log,
		cfg:      cfg,
		src:      src,
		clk:      clk,
		sim:      simulator,
		status:   StatusIdle,
		pauseCh:  make(chan struct{}, 1),
		resumeCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
}

// Start loads the bar set and begins replay in a background goroutine. It
// returns immediately; use Wait to block until the run finishes. A source
// failure before the first bar marks the run failed and is returned here.
func (r *Replayer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusIdle {
		r.mu.Unlock()
		return core.ErrRunExists
	}
	r.status = StatusRunning
	r.mu.Unlock()

	bars, err := r.src.Bars(ctx, r.cfg.Symbols, r.cfg.Start, r.cfg.End)
	if err != nil {
		r.fail(err)
		close(r.doneCh)
		return err
	}
	if len(bars) == 0 {
		r.fail(core.ErrNoData)
		close(r.doneCh)
		return core.ErrNoData
	}

	r.mu.Lock()
	r.total = len(bars)
	r.mu.Unlock()

	go r.loop(ctx, bars)
	return nil
}

func (r *Replayer) loop(ctx context.Context, bars []core.Bar) {
	defer close(r.doneCh)

	for _, bar := range bars {
		select {
		case <-ctx.Done():
			r.cancel()
			return
		case <-r.stopCh:
			r.cancel()
			return
		case <-r.pauseCh:
			if !r.waitResume(ctx) {
				return
			}
		default:
		}

		r.step(bar)

		if r.cfg.Speed == SpeedThrottled {
			time.Sleep(r.cfg.ThrottleInterval)
		}
	}

	r.complete()
}

// waitResume blocks while paused. Returns false if the run was cancelled
// instead of resumed.
func (r *Replayer) waitResume(ctx context.Context) bool {
	r.setStatus(StatusPaused)
	select {
	case <-ctx.Done():
		r.cancel()
		return false
	case <-r.stopCh:
		r.cancel()
		return false
	case <-r.resumeCh:
		r.setStatus(StatusRunning)
		return true
	}
}

// step advances the clock to the bar and feeds it to the simulator. The
// advance goes through the simulator so it cannot race a concurrent signal
// submission reading the clock. A malformed bar is counted and skipped,
// never fatal.
func (r *Replayer) step(bar core.Bar) {
	r.sim.AdvanceClock(bar.Time)

	malformed := false
	if r.cfg.RegularHoursOnly && r.clk.Session() != clock.SessionRegular {
		// Outside regular hours; consume the bar without trading.
	} else if err := r.sim.ProcessBar(bar); err != nil {
		malformed = true
		r.log.Warn("bar skipped",
			zap.String("symbol", bar.Symbol),
			zap.Time("bar_time", bar.Time),
			zap.Error(err))
	}

	r.mu.Lock()
	r.processed++
	if malformed {
		r.skipped++
	}
	t := bar.Time
	r.current = &t
	r.mu.Unlock()
}

func (r *Replayer) complete() {
	now := time.Now().UTC()
	if cur := r.clk.Now(); cur != nil {
		now = *cur
	}
	if err := r.sim.CloseAll(now, exit.ReasonEndOfData); err != nil {
		r.fail(err)
		return
	}
	r.setStatus(StatusCompleted)
	r.log.Info("replay completed", zap.Int("bars", r.BarsProcessed()))
}

func (r *Replayer) cancel() {
	r.setStatus(StatusCancelled)
	r.log.Info("replay cancelled", zap.Int("bars", r.BarsProcessed()))
}

func (r *Replayer) fail(err error) {
	r.mu.Lock()
	r.status = StatusFailed
	r.err = err
	r.mu.Unlock()
	r.log.Error("replay failed", zap.Error(err))
}

func (r *Replayer) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Pause requests a pause before the next bar. Only valid while running.
func (r *Replayer) Pause() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status != StatusRunning {
		return core.ErrRunTerminal
	}
	select {
	case r.pauseCh <- struct{}{}:
	default:
	}
	return nil
}

// Resume continues a paused replay.
func (r *Replayer) Resume() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.status != StatusPaused {
		return core.ErrRunTerminal
	}
	select {
	case r.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// Stop requests cooperative cancellation. The bar currently being processed
// finishes; no further bars are scheduled.
func (r *Replayer) Stop() {
	select {
	case r.stopCh <- struct{}{}:
	default:
	}
}

// Wait blocks until the replay goroutine exits and returns the failure
// error, if any.
func (r *Replayer) Wait() error {
	<-r.doneCh
	return r.Err()
}

// Status returns the current lifecycle state.
func (r *Replayer) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err returns the unrecoverable error that failed the run, or nil.
func (r *Replayer) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// BarsProcessed returns the number of bars consumed so far.
func (r *Replayer) BarsProcessed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processed
}

// Progress returns a snapshot of the replay's state.
func (r *Replayer) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := Progress{
		Status:        r.status,
		BarsProcessed: r.processed,
		BarsSkipped:   r.skipped,
		TotalBars:     r.total,
		CurrentTime:   r.current,
	}
	if r.total > 0 {
		p.PctComplete = float64(r.processed) / float64(r.total) * 100
	}
	if r.err != nil {
		p.Error = r.err.Error()
	}
	return p
}
