package core

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the bar granularity requested from a provider.
type Timeframe string

const (
	Timeframe1H Timeframe = "1h"
	Timeframe4H Timeframe = "4h"
	Timeframe1D Timeframe = "1d"
)

// Duration returns the wall-clock span of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1H:
		return time.Hour
	case Timeframe4H:
		return 4 * time.Hour
	case Timeframe1D:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeframe accepts "1h", "4h", "1d" in any case.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if tf.Duration() == 0 {
		return "", Errorf(ErrInvalidParameter, "unknown timeframe %q", s)
	}
	return tf, nil
}

// Adjustment selects corporate-action adjustment of historical prices.
type Adjustment string

const (
	AdjustmentRaw    Adjustment = "raw"
	AdjustmentSplits Adjustment = "splits"
	AdjustmentAll    Adjustment = "all"
)

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// BarSeries is the ordered bar history of one symbol at one timeframe.
// Timestamps are strictly increasing.
type BarSeries struct {
	Symbol    string
	Timeframe Timeframe
	Bars      []Bar
}

func (s BarSeries) Len() int { return len(s.Bars) }

// Last returns the newest bar. ok is false for an empty series.
func (s BarSeries) Last() (Bar, bool) {
	if len(s.Bars) == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Validate checks the strictly increasing timestamp invariant.
func (s BarSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			return Errorf(ErrInvalidParameter, "%s: bar %d at %s not after %s",
				s.Symbol, i, s.Bars[i].Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Closes extracts the close column.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Columns extracts the high, low, close and volume columns in one pass.
func Columns(bars []Bar) (high, low, close, volume []float64) {
	n := len(bars)
	high = make([]float64, n)
	low = make([]float64, n)
	close = make([]float64, n)
	volume = make([]float64, n)
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		close[i] = b.Close
		volume[i] = b.Volume
	}
	return
}

// Side is an order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionState is the per-symbol decision state.
type PositionState string

const (
	StateFlat PositionState = "FLAT"
	StateLong PositionState = "LONG"
)

// TradeIntent is an immutable instruction produced by the decision policy.
type TradeIntent struct {
	ID              string
	Symbol          string
	Side            Side
	Quantity        int64
	ReferencePrice  float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Score           int
	Signals         []string
	Reason          string
	CreatedAt       time.Time
}

// IsBracket reports whether the intent carries exit legs.
func (t TradeIntent) IsBracket() bool {
	return t.Side == SideBuy && t.StopLossPrice > 0 && t.TakeProfitPrice > 0
}

func (t TradeIntent) String() string {
	if t.IsBracket() {
		return fmt.Sprintf("%s %d %s @ %.2f (SL %.2f / TP %.2f, score %d)",
			t.Side, t.Quantity, t.Symbol, t.ReferencePrice, t.StopLossPrice, t.TakeProfitPrice, t.Score)
	}
	return fmt.Sprintf("%s %d %s @ %.2f (%s)", t.Side, t.Quantity, t.Symbol, t.ReferencePrice, t.Reason)
}
