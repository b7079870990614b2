package indicator

import (
	"fmt"
	"math"

	"github.com/newthinker/predator/internal/core"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultTrendWindow = 20

	adxPeriod         = 14
	slopeShiftBars    = 5
	strongADX         = 25.0
	smoothRSquared    = 0.7
	decentRSquared    = 0.5
	risingSlopePct    = 0.1
	parabolicSlopePct = 1.5
)

// TrendQualityMetrics summarises trend strength and shape over a trailing window.
type TrendQualityMetrics struct {
	ADX             float64
	Slope           float64
	Intercept       float64
	NormalizedSlope float64 // slope as a percentage of the last close
	RSquared        float64
	Accelerating    bool
}

// TrendQuality is the analyzer output: metrics plus the score contribution
// and its labels in evaluation order.
type TrendQuality struct {
	TrendQualityMetrics
	Score   int
	Signals []string
}

// AnalyzeTrendQuality evaluates ADX(14) and a least-squares fit of the last
// window closes. With fewer than window+14 bars it returns the zero result.
//
// The parabolic penalty is evaluated independently of the slope bonus, so a
// steep accelerating trend nets zero from the slope rules.
func AnalyzeTrendQuality(bars []core.Bar, window int) (TrendQuality, error) {
	if window < 2 {
		return TrendQuality{}, core.Errorf(core.ErrInvalidParameter, "trend window must be at least 2, got %d", window)
	}
	if len(bars) < window+adxPeriod {
		return TrendQuality{}, nil
	}

	high, low, close, _ := core.Columns(bars)
	n := len(close)

	m := TrendQualityMetrics{ADX: LastValue(ADX(high, low, close, adxPeriod))}
	m.Intercept, m.Slope, m.RSquared = fitLine(close[n-window:])

	prevSlope := m.Slope
	if n >= window+slopeShiftBars {
		_, prevSlope, _ = fitLine(close[n-window-slopeShiftBars : n-slopeShiftBars])
	}
	m.Accelerating = m.Slope > prevSlope

	if last := close[n-1]; last != 0 {
		m.NormalizedSlope = m.Slope / last * 100
	}

	tq := TrendQuality{TrendQualityMetrics: m}
	if m.ADX > strongADX {
		tq.add(2, fmt.Sprintf("Strong Trend (ADX:%d)", int(m.ADX)))
	}
	switch {
	case m.RSquared > smoothRSquared:
		tq.add(2, "High Quality Trend (Smooth)")
	case m.RSquared > decentRSquared:
		tq.add(1, "Decent Trend")
	}
	if m.NormalizedSlope > risingSlopePct {
		if m.Accelerating {
			tq.add(2, "Trend Accelerating")
		} else {
			tq.add(1, "Trend Stable")
		}
	}
	if m.NormalizedSlope > parabolicSlopePct {
		tq.add(-2, "PARABOLIC DANGER")
	}

	return tq, nil
}

func (tq *TrendQuality) add(delta int, label string) {
	tq.Score += delta
	tq.Signals = append(tq.Signals, label)
}

// fitLine regresses y against 0..len(y)-1. A constant series is a perfect fit.
func fitLine(y []float64) (intercept, slope, rSquared float64) {
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	intercept, slope = stat.LinearRegression(x, y, nil, false)
	rSquared = stat.RSquared(x, y, nil, intercept, slope)
	if math.IsNaN(rSquared) || math.IsInf(rSquared, 0) {
		rSquared = 1.0
	}
	return intercept, slope, rSquared
}
