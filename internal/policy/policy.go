// Package policy maps scores to entries and exits with a two-state machine
// per symbol.
package policy

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/scoring"
	"github.com/shopspring/decimal"
)

// Config parameterises entries.
type Config struct {
	EntryThreshold      int
	RiskFraction        float64 // share of equity committed per entry
	StopATRMultiple     float64
	TargetATRMultiple   float64
	FallbackATRFraction float64 // ATR substitute, as a fraction of price, when ATR is unusable
}

// DefaultConfig enters at score 9 with 2% of equity and a 2.5/7.5 ATR bracket.
func DefaultConfig() Config {
	return Config{
		EntryThreshold:      9,
		RiskFraction:        0.02,
		StopATRMultiple:     2.5,
		TargetATRMultiple:   7.5,
		FallbackATRFraction: 0.03,
	}
}

// Holding is the position the policy believes it has in a symbol.
type Holding struct {
	State    core.PositionState
	Quantity int64
}

// Flat is the empty holding.
var Flat = Holding{State: core.StateFlat}

// Evaluation is one tick of scorer output for a symbol.
type Evaluation struct {
	Symbol  string
	Score   int
	Signals []string
	Price   float64
	ATR     float64
}

// FromResult adapts scorer output.
func FromResult(r scoring.Result) Evaluation {
	return Evaluation{Symbol: r.Symbol, Score: r.Score, Signals: r.Signals, Price: r.Price, ATR: r.ATR}
}

func (e Evaluation) bullish() bool {
	for _, s := range e.Signals {
		if s == scoring.SignalAlphaTrendBullish {
			return true
		}
	}
	return false
}

// Policy is stateless; holdings are passed in on every call.
type Policy struct {
	cfg Config
}

func New(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

func (p *Policy) Config() Config { return p.cfg }

// Decide returns the intent for one tick, or None when nothing should change.
//
// A LONG holding whose evaluation lacks the AlphaTrend bullish label is
// closed in full regardless of score. A FLAT holding whose score reaches the
// entry threshold is bought with a bracket; an entry too small for one share
// is skipped. Decide reads only its arguments.
func (p *Policy) Decide(h Holding, ev Evaluation, equity decimal.Decimal) optional.Option[core.TradeIntent] {
	switch h.State {
	case core.StateLong:
		if ev.bullish() {
			return optional.None[core.TradeIntent]()
		}
		return optional.Some(core.TradeIntent{
			Symbol:         ev.Symbol,
			Side:           core.SideSell,
			Quantity:       h.Quantity,
			ReferencePrice: ev.Price,
			Score:          ev.Score,
			Signals:        cloneSignals(ev.Signals),
			Reason:         "AlphaTrend turned bearish",
		})

	case core.StateFlat, "":
		if ev.Score < p.cfg.EntryThreshold || ev.Price <= 0 || !isFinite(ev.Price) {
			return optional.None[core.TradeIntent]()
		}
		qty := p.Quantity(equity, ev.Price)
		if qty <= 0 {
			return optional.None[core.TradeIntent]()
		}
		stop, target := p.Bracket(ev.Price, ev.ATR)
		return optional.Some(core.TradeIntent{
			Symbol:          ev.Symbol,
			Side:            core.SideBuy,
			Quantity:        qty,
			ReferencePrice:  ev.Price,
			StopLossPrice:   stop,
			TakeProfitPrice: target,
			Score:           ev.Score,
			Signals:         cloneSignals(ev.Signals),
			Reason:          fmt.Sprintf("score %d >= %d", ev.Score, p.cfg.EntryThreshold),
		})
	}
	return optional.None[core.TradeIntent]()
}

// Quantity is floor(equity * riskFraction / price) whole shares.
func (p *Policy) Quantity(equity decimal.Decimal, price float64) int64 {
	if price <= 0 || !equity.IsPositive() {
		return 0
	}
	return equity.
		Mul(decimal.NewFromFloat(p.cfg.RiskFraction)).
		Div(decimal.NewFromFloat(price)).
		Floor().
		IntPart()
}

// Bracket returns stop-loss and take-profit prices rounded to the cent. An
// ATR that is zero, missing, or wide enough to push the stop to zero is
// replaced by FallbackATRFraction of price, keeping the stop/target ratio.
func (p *Policy) Bracket(price, atr float64) (stop, target float64) {
	if atr <= 0 || !isFinite(atr) || price-p.cfg.StopATRMultiple*atr <= 0 {
		atr = price * p.cfg.FallbackATRFraction
	}
	stop = roundCents(price - p.cfg.StopATRMultiple*atr)
	target = roundCents(price + p.cfg.TargetATRMultiple*atr)
	return stop, target
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func cloneSignals(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
