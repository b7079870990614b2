// Package trader runs the polling loop: resync positions, refresh bars,
// score the watchlist, decide, execute and record.
package trader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/predator/internal/alert"
	"github.com/newthinker/predator/internal/broker"
	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/journal"
	"github.com/newthinker/predator/internal/metrics"
	"github.com/newthinker/predator/internal/notifier"
	"github.com/newthinker/predator/internal/policy"
	"github.com/newthinker/predator/internal/resample"
	"github.com/newthinker/predator/internal/scoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config is the trader's loop configuration.
type Config struct {
	Watchlist []string
	Benchmark string
	// Peers are fetched for the sector rule but never traded.
	Peers        []string
	Timeframe    core.Timeframe
	PollInterval time.Duration
}

// Marker is implemented by brokers that simulate fills from bars.
type Marker interface {
	Mark(symbol string, bar core.Bar)
}

type Trader struct {
	cfg     Config
	cache   *collector.BarCache
	scorer  *scoring.Scorer
	policy  *policy.Policy
	broker  broker.Broker
	tracker *broker.PositionTracker
	exec    *broker.ExecutionManager

	journal   *journal.Journal
	notifiers *notifier.Registry
	metrics   *metrics.Registry
	log       *zap.Logger
	now       func() time.Time
	newID     func() string

	alerts     *alert.Evaluator
	alertRules []alert.Rule

	// consecutive failed cycles, reset on success
	failures int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

type Option func(*Trader)

func WithJournal(j *journal.Journal) Option      { return func(t *Trader) { t.journal = j } }
func WithNotifiers(r *notifier.Registry) Option  { return func(t *Trader) { t.notifiers = r } }
func WithMetrics(m *metrics.Registry) Option     { return func(t *Trader) { t.metrics = m } }
func WithLogger(l *zap.Logger) Option            { return func(t *Trader) { t.log = l } }
func WithClock(now func() time.Time) Option      { return func(t *Trader) { t.now = now } }
func WithIDGenerator(newID func() string) Option { return func(t *Trader) { t.newID = newID } }

// WithAlerts evaluates rules against the trader's health after every cycle.
func WithAlerts(e *alert.Evaluator, rules []alert.Rule) Option {
	return func(t *Trader) {
		t.alerts = e
		t.alertRules = rules
	}
}

func New(cfg Config, cache *collector.BarCache, scorer *scoring.Scorer, pol *policy.Policy,
	b broker.Broker, exec *broker.ExecutionManager, tracker *broker.PositionTracker, opts ...Option) *Trader {
	if cfg.Timeframe == "" {
		cfg.Timeframe = core.Timeframe4H
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	t := &Trader{
		cfg:     cfg,
		cache:   cache,
		scorer:  scorer,
		policy:  pol,
		broker:  b,
		tracker: tracker,
		exec:    exec,
		log:     zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Symbols is everything the cache must hold: watchlist, benchmark and peers.
func (t *Trader) Symbols() []string {
	all := append(slices.Clone(t.cfg.Watchlist), t.cfg.Peers...)
	if t.cfg.Benchmark != "" {
		all = append(all, t.cfg.Benchmark)
	}
	slices.Sort(all)
	return slices.Compact(all)
}

// Run primes the cache, runs one cycle immediately and then one per poll
// interval until ctx ends.
func (t *Trader) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("trader already running")
	}
	t.running = true
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	t.log.Info("trader starting",
		zap.Int("watchlist", len(t.cfg.Watchlist)),
		zap.String("benchmark", t.cfg.Benchmark),
		zap.String("broker", t.broker.Name()),
		zap.String("mode", string(t.exec.Mode())),
		zap.Duration("interval", t.cfg.PollInterval))
	if t.metrics != nil {
		t.metrics.SetWatchlistSize(len(t.cfg.Watchlist))
	}

	t.tick(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.log.Info("trader shutting down")
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Trader) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Trader) tick(ctx context.Context) {
	start := t.now()
	rep, err := t.RunCycle(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		t.log.Error("cycle failed", zap.Error(err))
		t.notify(ctx, notifier.Event{Kind: notifier.KindError, Message: err.Error(), Time: start})
	} else {
		t.log.Info("cycle complete",
			zap.Int("evaluated", rep.Evaluated),
			zap.Int("intents", len(rep.Intents)),
			zap.Int("errors", len(rep.Errors)))
	}
	if t.metrics != nil {
		t.metrics.RecordCycle(status, t.now().Sub(start).Seconds())
	}
	if err != nil {
		t.failures++
	} else {
		t.failures = 0
	}
	t.checkHealth(ctx, rep)
}

// Health returns the metrics alert rules are evaluated against.
func (t *Trader) Health(ctx context.Context, rep *Report) map[string]float64 {
	h := map[string]float64{
		alert.MetricCycleFailures: float64(t.failures),
		alert.MetricOpenPositions: float64(len(t.tracker.Positions())),
	}
	if rep != nil {
		h[alert.MetricSymbolErrors] = float64(len(rep.Errors))
	}
	if last := t.cache.LastSync(); !last.IsZero() {
		h[alert.MetricBarAgeMinutes] = t.now().Sub(last).Minutes()
	}
	if bal, err := t.broker.GetBalance(ctx); err == nil && bal.Equity.IsPositive() {
		h[alert.MetricDailyLossPct] = bal.DailyPL().Neg().Div(bal.Equity).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return h
}

func (t *Trader) checkHealth(ctx context.Context, rep *Report) {
	if t.alerts == nil || len(t.alertRules) == 0 {
		return
	}
	if fired := t.alerts.EvaluateAll(ctx, t.alertRules, t.Health(ctx, rep)); len(fired) > 0 {
		t.log.Debug("alerts fired", zap.Strings("rules", fired))
	}
}

// Report summarises one cycle.
type Report struct {
	Started   time.Time
	Evaluated int
	Results   []scoring.Scored
	// Intents holds what the policy asked for; Executed those the broker accepted.
	Intents  []core.TradeIntent
	Executed []core.TradeIntent
	Errors   map[string]error
}

// RunCycle runs one evaluation pass. It fails only when broker state or
// equity cannot be read; per-symbol problems are collected in the report.
// A cancelled ctx ends the pass early and returns what was done so far.
func (t *Trader) RunCycle(ctx context.Context) (*Report, error) {
	rep := &Report{Started: t.now(), Errors: map[string]error{}}

	if err := t.tracker.Sync(ctx); err != nil {
		return rep, fmt.Errorf("resync positions: %w", err)
	}
	equity, err := t.broker.GetEquity(ctx)
	if err != nil {
		return rep, fmt.Errorf("read equity: %w", err)
	}
	if t.metrics != nil {
		t.metrics.SetOpenPositions(len(t.tracker.Positions()))
		t.metrics.SetEquity(equity.InexactFloat64())
	}

	if err := t.refresh(ctx); err != nil {
		// stale bars are still scored; the next cycle retries
		t.log.Warn("bar refresh failed", zap.Error(err))
	}

	series := t.resampled(rep)
	results := t.scorer.ScoreAll(t.cfg.Watchlist, series, t.cfg.Benchmark)
	rep.Results = results

	for _, r := range results {
		if ctx.Err() != nil {
			return rep, nil
		}
		if r.Err != nil {
			t.symbolError(rep, r.Symbol, "score", r.Err)
			continue
		}
		rep.Evaluated++
		if t.metrics != nil {
			t.metrics.SetScore(r.Symbol, r.Score)
		}
		t.act(ctx, rep, r.Result, equity)
	}
	return rep, nil
}

// refresh primes symbols seen for the first time and tops up the rest.
func (t *Trader) refresh(ctx context.Context) error {
	return t.cache.Refresh(ctx, t.Symbols())
}

// resampled converts cached base bars to the scoring timeframe, dropping a
// trailing bucket that has not closed yet, and marks paper brokers.
func (t *Trader) resampled(rep *Report) map[string][]core.Bar {
	snap := t.cache.Snapshot()
	marker, _ := t.broker.(Marker)
	out := make(map[string][]core.Bar, len(snap))
	for sym, bars := range snap {
		if len(bars) == 0 {
			continue
		}
		if marker != nil {
			marker.Mark(sym, bars[len(bars)-1])
		}
		rs, err := resample.Resample(bars, t.cfg.Timeframe.Duration(), resample.WithCutoff(t.now()))
		if err != nil {
			t.symbolError(rep, sym, "resample", err)
			continue
		}
		out[sym] = rs
	}
	return out
}

func (t *Trader) act(ctx context.Context, rep *Report, res scoring.Result, equity decimal.Decimal) {
	state, qty := t.tracker.State(res.Symbol)
	holding := policy.Holding{State: state, Quantity: qty}

	opt := t.policy.Decide(holding, policy.FromResult(res), equity)
	if opt.IsNone() {
		return
	}
	intent := opt.Unwrap()
	intent.ID = t.newID()
	intent.CreatedAt = t.now().UTC()
	rep.Intents = append(rep.Intents, intent)

	side := string(intent.Side)
	if t.metrics != nil {
		t.metrics.RecordIntent(side)
	}
	t.log.Info("intent",
		zap.String("symbol", intent.Symbol),
		zap.String("side", side),
		zap.Int64("qty", intent.Quantity),
		zap.Int("score", intent.Score),
		zap.Strings("signals", intent.Signals))

	result, err := t.exec.Execute(ctx, intent)
	if err != nil {
		t.symbolError(rep, intent.Symbol, "execute", err)
		if t.metrics != nil {
			t.metrics.RecordOrder(side, "error")
		}
		t.notify(ctx, notifier.Event{Kind: notifier.KindError, Intent: intent, Message: err.Error(), Time: intent.CreatedAt})
		return
	}
	if !result.Submitted {
		t.log.Info("intent not submitted", zap.String("symbol", intent.Symbol), zap.String("reason", result.Message))
		if t.metrics != nil {
			t.metrics.RecordOrder(side, "skipped")
		}
		return
	}

	rep.Executed = append(rep.Executed, intent)
	if t.metrics != nil {
		t.metrics.RecordOrder(side, "submitted")
	}
	if t.journal != nil {
		// already logged inside Record
		_ = t.journal.RecordIntent(ctx, intent, result.OrderID)
	}
	t.notify(ctx, notifier.FromIntent(intent, result.OrderID))
}

func (t *Trader) symbolError(rep *Report, symbol, stage string, err error) {
	rep.Errors[symbol] = err
	lvl := t.log.Warn
	if errors.Is(err, core.ErrInsufficientHistory) {
		lvl = t.log.Debug
	}
	lvl("symbol skipped", zap.String("symbol", symbol), zap.String("stage", stage), zap.Error(err))
	if t.metrics != nil {
		t.metrics.RecordSymbolError(stage)
	}
}

func (t *Trader) notify(ctx context.Context, ev notifier.Event) {
	if t.notifiers == nil || t.notifiers.Len() == 0 {
		return
	}
	for name, err := range t.notifiers.NotifyAll(ctx, ev) {
		t.log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}
