package alert

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/predator/internal/logger"
	"github.com/newthinker/predator/internal/notifier"
	"go.uber.org/zap"
)

// Evaluator fires rules through the notifier registry, holding a rule back
// until it has been true for its For duration and muting it for the
// cooldown after it fires.
type Evaluator struct {
	notifiers *notifier.Registry
	log       *zap.Logger
	cooldown  time.Duration
	now       func() time.Time

	mu sync.Mutex

	// when each rule first became true
	pending   map[string]time.Time
	lastFired map[string]time.Time
}

type Option func(*Evaluator)

func WithCooldown(d time.Duration) Option   { return func(e *Evaluator) { e.cooldown = d } }
func WithClock(now func() time.Time) Option { return func(e *Evaluator) { e.now = now } }

// NewEvaluator creates an evaluator. notifiers may be nil, in which case
// alerts are only logged.
func NewEvaluator(notifiers *notifier.Registry, log *zap.Logger, opts ...Option) *Evaluator {
	log = logger.OrNop(log)
	e := &Evaluator{
		notifiers: notifiers,
		log:       log,
		cooldown:  30 * time.Minute,
		now:       time.Now,
		pending:   make(map[string]time.Time),
		lastFired: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks one rule against metrics and reports whether it fired.
func (e *Evaluator) Evaluate(ctx context.Context, rule Rule, metrics map[string]float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !rule.Evaluate(metrics) {
		delete(e.pending, rule.Name)
		return false
	}

	if rule.For > 0 {
		since, ok := e.pending[rule.Name]
		if !ok {
			e.pending[rule.Name] = now
			return false
		}
		if now.Sub(since) < rule.For {
			return false
		}
	}

	if last, ok := e.lastFired[rule.Name]; ok && now.Sub(last) < e.cooldown {
		return false
	}

	msg := rule.FormatMessage(metrics)
	e.log.Warn("alert", zap.String("rule", rule.Name), zap.String("severity", rule.Severity), zap.String("message", msg))
	if e.notifiers != nil && e.notifiers.Len() > 0 {
		for name, err := range e.notifiers.NotifyAll(ctx, notifier.Event{Kind: notifier.KindAlert, Message: msg, Time: now}) {
			e.log.Warn("alert notification failed", zap.String("notifier", name), zap.Error(err))
		}
	}

	e.lastFired[rule.Name] = now
	delete(e.pending, rule.Name)
	return true
}

// EvaluateAll evaluates rules in order and returns the names that fired.
func (e *Evaluator) EvaluateAll(ctx context.Context, rules []Rule, metrics map[string]float64) []string {
	var fired []string
	for _, r := range rules {
		if e.Evaluate(ctx, r, metrics) {
			fired = append(fired, r.Name)
		}
	}
	return fired
}
