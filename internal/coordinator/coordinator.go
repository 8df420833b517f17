package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/backlab/simcore/internal/account"
	"github.com/backlab/simcore/internal/clock"
	"github.com/backlab/simcore/internal/config"
	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"github.com/backlab/simcore/internal/fill"
	"github.com/backlab/simcore/internal/logger"
	"github.com/backlab/simcore/internal/metrics"
	"github.com/backlab/simcore/internal/replay"
	"github.com/backlab/simcore/internal/sim"
	"github.com/backlab/simcore/internal/storage/archive"
	"github.com/backlab/simcore/internal/storage/barcache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultCacheSize = 10000

// Options configures the coordinator.
type Options struct {
	MaxRuns   int
	CacheSize int
	Timezone  string
	Archiver  *archive.Archiver
	Metrics   *metrics.Registry
}

// InitOptions configures per-run resources allocated by InitBacktest.
type InitOptions struct {
	Timezone      string
	IsolatedCache bool
}

// runtime holds the live resources of one run: its clock, optional cache,
// simulator, and replayer. Exclusively owned by that run; dropped on
// cleanup.
type runtime struct {
	clk    *clock.Clock
	cache  *barcache.Cache
	sim    *sim.Simulator
	rep    *replay.Replayer
	cancel context.CancelFunc
}

// Coordinator creates, isolates, and tears down per-run resources. It is
// the only entry point external callers use: runs are addressed by id
// through its registry, never through shared global state.
type Coordinator struct {
	mu sync.RWMutex

	log  *zap.Logger
	src  replay.Source
	opts Options

	live    map[string]*runtime
	records map[string]*BacktestRun
	results map[string]*Result
	order   []string // Record insertion order for eviction
}

// New creates a coordinator serving runs from the given bar source.
func New(src replay.Source, opts Options, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxRuns < 1 {
		opts.MaxRuns = 100
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = defaultCacheSize
	}
	return &Coordinator{
		log:     log,
		src:     src,
		opts:    opts,
		live:    make(map[string]*runtime),
		records: make(map[string]*BacktestRun),
		results: make(map[string]*Result),
	}
}

// InitBacktest allocates the isolated per-run resources: a virtual clock
// and, when requested, a private bar cache. Fails with ErrRunExists when
// the run id is already active.
func (c *Coordinator) InitBacktest(runID string, symbols []string, opts InitOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initLocked(runID, symbols, opts)
}

func (c *Coordinator) initLocked(runID string, symbols []string, opts InitOptions) error {
	if _, exists := c.live[runID]; exists {
		return core.ErrRunExists
	}

	tz := opts.Timezone
	if tz == "" {
		tz = c.opts.Timezone
	}

	rt := &runtime{clk: clock.New(tz)}
	if opts.IsolatedCache {
		rt.cache = barcache.New(c.opts.CacheSize)
	}
	c.live[runID] = rt

	if _, ok := c.records[runID]; !ok {
		c.addRecordLocked(&BacktestRun{
			ID:        runID,
			Config:    config.RunConfig{Symbols: symbols},
			Status:    StatusPending,
			CreatedAt: time.Now().UTC(),
		})
	}
	return nil
}

func (c *Coordinator) addRecordLocked(run *BacktestRun) {
	// Evict the oldest terminal record if at capacity.
	if len(c.records) >= c.opts.MaxRuns {
		for i, id := range c.order {
			if rec, ok := c.records[id]; ok && rec.Status.Terminal() {
				delete(c.records, id)
				delete(c.results, id)
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.records[run.ID] = run
	c.order = append(c.order, run.ID)
}

// Clock returns the run's virtual clock, or nil for unknown runs.
func (c *Coordinator) Clock(runID string) *clock.Clock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rt, ok := c.live[runID]; ok {
		return rt.clk
	}
	return nil
}

// BarCache returns the run's isolated bar cache, or nil when the run is
// unknown or was started without one.
func (c *Coordinator) BarCache(runID string) *barcache.Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rt, ok := c.live[runID]; ok {
		return rt.cache
	}
	return nil
}

// Cleanup releases the run's live resources: the clock is reset, the
// isolated cache dropped, and any replay stopped. Idempotent for unknown
// runs. The run record itself survives for status queries.
func (c *Coordinator) Cleanup(runID string) {
	c.mu.Lock()
	rt, ok := c.live[runID]
	if ok {
		delete(c.live, runID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if rt.rep != nil {
		rt.rep.Stop()
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	rt.clk.Reset()
	if rt.cache != nil {
		rt.cache.Clear()
	}
}

// ActiveRuns lists the ids of runs with live resources.
func (c *Coordinator) ActiveRuns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.live))
	for id := range c.live {
		out = append(out, id)
	}
	return out
}

// cachingSource mirrors every loaded bar into the run's isolated cache.
type cachingSource struct {
	src   replay.Source
	cache *barcache.Cache
}

func (c cachingSource) Bars(ctx context.Context, symbols []string, start, end time.Time) ([]core.Bar, error) {
	bars, err := c.src.Bars(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range bars {
		c.cache.Put(b)
	}
	return bars, nil
}

// Submit validates the run configuration, allocates the per-run actors, and
// starts replay in the background. It returns the new run id immediately.
func (c *Coordinator) Submit(ctx context.Context, cfg config.RunConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	runID := uuid.NewString()

	c.mu.Lock()
	if err := c.initLocked(runID, cfg.Symbols, InitOptions{
		Timezone:      cfg.Timezone,
		IsolatedCache: cfg.IsolatedCache,
	}); err != nil {
		c.mu.Unlock()
		return "", err
	}

	rt := c.live[runID]
	rec := c.records[runID]
	rec.Config = cfg

	runLog := logger.ForRun(c.log, runID)
	acct := account.New(cfg.InitialCapital, cfg.RiskPerTrade)
	rt.sim = sim.New(acct, rt.clk, fillConfig(cfg), cfg.Seed, cfg.ATRPeriod,
		cfg.Symbols, runLog)

	src := c.src
	if rt.cache != nil {
		src = cachingSource{src: c.src, cache: rt.cache}
	}
	rt.rep = replay.New(src, rt.clk, rt.sim, replayConfig(cfg), runLog)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel

	now := time.Now().UTC()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	c.mu.Unlock()

	if c.opts.Metrics != nil {
		c.opts.Metrics.RunStarted()
	}

	if err := rt.rep.Start(runCtx); err != nil {
		c.finalize(runID, rt)
		return runID, err
	}

	go func() {
		rt.rep.Wait()
		c.finalize(runID, rt)
	}()

	c.log.Info("run submitted",
		zap.String("run_id", runID),
		zap.Strings("symbols", cfg.Symbols))
	return runID, nil
}

// finalize moves the record to its terminal state, captures the result,
// records metrics, archives when configured, and releases live resources.
func (c *Coordinator) finalize(runID string, rt *runtime) {
	progress := rt.rep.Progress()

	c.mu.Lock()
	rec, ok := c.records[runID]
	if !ok || rec.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.Progress = progress.PctComplete
	rec.BarsProcessed = progress.BarsProcessed
	rec.BarsSkipped = progress.BarsSkipped
	rec.CurrentTime = progress.CurrentTime
	rec.Error = progress.Error

	switch progress.Status {
	case replay.StatusCompleted:
		rec.Status = StatusCompleted
	case replay.StatusCancelled:
		rec.Status = StatusCancelled
	default:
		rec.Status = StatusFailed
	}

	result := &Result{
		Run:     *rec,
		Summary: rt.sim.Summary(),
		Ledger:  rt.sim.Ledger(),
		Equity:  rt.sim.EquityCurve(),
	}
	c.results[runID] = result

	started := rec.StartedAt
	status := rec.Status
	c.mu.Unlock()

	if m := c.opts.Metrics; m != nil {
		duration := 0.0
		if started != nil {
			duration = now.Sub(*started).Seconds()
		}
		m.RunFinished(string(status), duration)
		m.AddBarsReplayed(progress.BarsProcessed, progress.BarsSkipped)
		for _, trade := range result.Ledger {
			m.RecordTradeClosed(string(trade.ExitReason))
		}
	}

	if c.opts.Archiver != nil && status == StatusCompleted {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.opts.Archiver.ArchiveRun(ctx, runID, result.Run, result.Ledger, result.Equity); err != nil {
			c.log.Error("archiving run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	c.Cleanup(runID)
	c.log.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(status)),
		zap.Int("bars", progress.BarsProcessed))
}

// Status returns a copy of the run record, overlaid with live replay
// progress while the run is executing.
func (c *Coordinator) Status(runID string) (BacktestRun, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[runID]
	if !ok {
		return BacktestRun{}, core.ErrRunNotFound
	}
	out := *rec

	if rt, live := c.live[runID]; live && rt.rep != nil && !out.Status.Terminal() {
		p := rt.rep.Progress()
		out.Progress = p.PctComplete
		out.BarsProcessed = p.BarsProcessed
		out.BarsSkipped = p.BarsSkipped
		out.CurrentTime = p.CurrentTime
	}
	return out, nil
}

// Runs returns a copy of every run record, newest submission first.
func (c *Coordinator) Runs() []BacktestRun {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]BacktestRun, 0, len(c.records))
	for i := len(c.order) - 1; i >= 0; i-- {
		if rec, ok := c.records[c.order[i]]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// Cancel requests cooperative cancellation of a run. The bar currently
// being processed finishes; no further bars are scheduled.
func (c *Coordinator) Cancel(runID string) error {
	c.mu.RLock()
	rec, ok := c.records[runID]
	if !ok {
		c.mu.RUnlock()
		return core.ErrRunNotFound
	}
	if rec.Status.Terminal() {
		c.mu.RUnlock()
		return core.ErrRunTerminal
	}
	rt := c.live[runID]
	c.mu.RUnlock()

	if rt != nil && rt.rep != nil {
		rt.rep.Stop()
	}
	return nil
}

// Pause suspends a running replay before its next bar.
func (c *Coordinator) Pause(runID string) error {
	rt, err := c.liveRun(runID)
	if err != nil {
		return err
	}
	return rt.rep.Pause()
}

// Resume continues a paused replay.
func (c *Coordinator) Resume(runID string) error {
	rt, err := c.liveRun(runID)
	if err != nil {
		return err
	}
	return rt.rep.Resume()
}

// SubmitSignal forwards a trading signal to the run's simulator.
func (c *Coordinator) SubmitSignal(runID string, sig core.Signal, strategy *exit.Strategy) error {
	rt, err := c.liveRun(runID)
	if err != nil {
		return err
	}
	err = rt.sim.SubmitSignal(sig, strategy)
	if m := c.opts.Metrics; m != nil {
		if err != nil {
			m.RecordSignal("rejected")
		} else {
			m.RecordSignal("accepted")
		}
	}
	return err
}

func (c *Coordinator) liveRun(runID string) (*runtime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rt, ok := c.live[runID]
	if !ok || rt.rep == nil || rt.sim == nil {
		return nil, core.ErrRunNotFound
	}
	return rt, nil
}

// Result returns the outputs of a finished run.
func (c *Coordinator) Result(runID string) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if res, ok := c.results[runID]; ok {
		return res, nil
	}
	if _, ok := c.records[runID]; ok {
		return nil, core.ErrRunActive
	}
	return nil, core.ErrRunNotFound
}

// Wait blocks until the run has finished and its result is recorded.
// Used by one-shot callers.
func (c *Coordinator) Wait(runID string) error {
	c.mu.RLock()
	rt, ok := c.live[runID]
	c.mu.RUnlock()
	if !ok || rt.rep == nil {
		return nil
	}
	err := rt.rep.Wait()

	// The replay loop finishes before finalization records the outcome.
	for {
		c.mu.RLock()
		rec := c.records[runID]
		done := rec == nil || rec.Status.Terminal()
		c.mu.RUnlock()
		if done {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func fillConfig(cfg config.RunConfig) fill.Config {
	out := fill.DefaultConfig()
	if cfg.FillPolicy != "" {
		out.Policy = fill.PricePolicy(cfg.FillPolicy)
	}
	if cfg.SlippageModel != "" {
		out.Slippage = fill.SlippageModel(cfg.SlippageModel)
	}
	out.Amount = cfg.SlippageAmount
	return out
}

func replayConfig(cfg config.RunConfig) replay.Config {
	out := replay.Config{
		Symbols:          cfg.Symbols,
		Start:            cfg.Start,
		End:              cfg.End,
		Speed:            replay.Speed(cfg.Speed),
		RegularHoursOnly: cfg.RegularHoursOnly,
	}
	if cfg.ThrottleMs > 0 {
		out.ThrottleInterval = time.Duration(cfg.ThrottleMs) * time.Millisecond
	}
	return out
}
