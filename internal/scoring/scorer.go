// Package scoring combines trend, momentum, divergence, relative strength
// and sector factors into one additive score per symbol.
package scoring

import (
	"fmt"
	"slices"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/indicator"
)

// Signal labels that other packages key on.
const (
	SignalMacroBullish      = "Macro Bullish"
	SignalAlphaTrendBullish = "AlphaTrend Bullish"
	SignalJustCrossed       = "JUST CROSSED"
	SignalDeepDip           = "Deep Dip"
	SignalModerateDip       = "Moderate Dip"
	SignalBreakout          = "Breakout"
	SignalDivergence        = "Bullish Divergence"
	SignalRSIBounce         = "RSI Support Bounce"
	SignalRelativeStrength  = "Relative Strength"
)

const (
	// MinBars is the history below which a symbol scores zero.
	MinBars = 200

	macroTrendPeriod = 200
	rsiPeriod        = 14
	bracketATRPeriod = 14
	deepDipRSI       = 35.0
	moderateDipRSI   = 45.0
	minBullishPeers  = 2
)

// Params are the indicator parameters the scorer runs with.
type Params struct {
	AlphaTrendPeriod int
	AlphaTrendCoeff  float64
	TrendWindow      int
	DivergenceWindow int
	DivergenceOrder  int
}

// DefaultParams returns the standard indicator parameters.
func DefaultParams() Params {
	return Params{
		AlphaTrendPeriod: indicator.DefaultAlphaTrendPeriod,
		AlphaTrendCoeff:  indicator.DefaultAlphaTrendCoeff,
		TrendWindow:      indicator.DefaultTrendWindow,
		DivergenceWindow: indicator.DefaultDivergenceWindow,
		DivergenceOrder:  indicator.DefaultDivergenceOrder,
	}
}

// Result is the outcome of scoring one symbol on its newest bar.
type Result struct {
	Symbol  string
	Score   int
	Signals []string

	// Price is the last close and ATR the Wilder ATR(14) used for brackets.
	// Both are zero when history is insufficient.
	Price float64
	ATR   float64
	RSI   float64
	Last  core.Bar

	Trend indicator.TrendQuality
}

// HasSignal reports whether label was emitted.
func (r Result) HasSignal(label string) bool {
	return slices.Contains(r.Signals, label)
}

// Bullish reports the AlphaTrend direction on the scored bar.
func (r Result) Bullish() bool {
	return r.HasSignal(SignalAlphaTrendBullish)
}

func (r *Result) add(delta int, label string) {
	r.Score += delta
	r.Signals = append(r.Signals, label)
}

// Scorer evaluates the composite rule table. It holds no mutable state.
type Scorer struct {
	params  Params
	sectors *Sectors
}

// New creates a scorer. sectors may be nil, in which case no symbol has a sector.
func New(params Params, sectors *Sectors) *Scorer {
	return &Scorer{params: params, sectors: sectors}
}

// Score evaluates symbol on its newest bar. bars must already be at the
// scoring timeframe. Fewer than MinBars bars scores zero without error.
// snap supplies benchmark and peer data and is only read.
func (s *Scorer) Score(symbol string, bars []core.Bar, snap *Snapshot) (Result, error) {
	res := Result{Symbol: symbol}
	n := len(bars)
	if n < MinBars {
		return res, nil
	}

	at, err := indicator.ComputeAlphaTrend(bars, s.params.AlphaTrendPeriod, s.params.AlphaTrendCoeff)
	if err != nil {
		return Result{Symbol: symbol}, fmt.Errorf("scoring %s: %w", symbol, err)
	}
	trend, err := indicator.AnalyzeTrendQuality(bars, s.params.TrendWindow)
	if err != nil {
		return Result{Symbol: symbol}, fmt.Errorf("scoring %s: %w", symbol, err)
	}

	high, low, close, _ := core.Columns(bars)
	last, prev := bars[n-1], bars[n-2]
	rsi := indicator.RSI(close, rsiPeriod)

	res.Price = last.Close
	res.ATR = indicator.LastValue(indicator.WilderATR(high, low, close, bracketATRPeriod))
	res.RSI = indicator.LastValue(rsi)
	res.Last = last
	res.Trend = trend

	if sma, ok := indicator.LastSMA(close, macroTrendPeriod); ok && last.Close > sma {
		res.add(2, SignalMacroBullish)
	}

	if at.LastBullish() {
		res.add(3, SignalAlphaTrendBullish)
	}
	if at.LastCrossUp() {
		res.add(2, SignalJustCrossed)
	}

	switch {
	case res.RSI < deepDipRSI:
		res.add(2, SignalDeepDip)
	case res.RSI < moderateDipRSI:
		res.add(1, SignalModerateDip)
	}

	if last.Close > prev.High {
		res.add(1, SignalBreakout)
	}

	if indicator.BullishDivergence(close, rsi, s.params.DivergenceWindow, s.params.DivergenceOrder) {
		res.add(4, SignalDivergence)
	}
	if indicator.RSISupportBounce(rsi) {
		res.add(2, SignalRSIBounce)
	}

	res.Score += trend.Score
	res.Signals = append(res.Signals, trend.Signals...)

	if benchRet, ok := snap.BenchmarkReturn(); ok {
		if ret, ok := indicator.PercentChange(close, relativeStrengthBars); ok && ret > benchRet {
			res.add(1, SignalRelativeStrength)
		}
	}

	if sector, ok := s.sectors.SectorOf(symbol); ok {
		bullish := 0
		for _, peer := range s.sectors.Peers(symbol) {
			if snap.AboveSMA50(peer) {
				bullish++
			}
		}
		if bullish >= minBullishPeers {
			res.add(1, sector+" Tailwind")
		}
	}

	return res, nil
}
