package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/newthinker/predator/internal/core"
)

// AlphaTrend defaults.
const (
	DefaultAlphaTrendPeriod = 14
	DefaultAlphaTrendCoeff  = 1.0

	// trendLagBars is the offset between the trend line and its lagged copy.
	trendLagBars = 2
)

// AlphaTrendState is aligned 1:1 with the input bars.
//
// TrendLine is a first-order recurrence: TrendLine[i] depends on
// TrendLine[i-1] and bar i only. While the money flow index is defined and
// at least 50 the line can only rise; below 50 it can only fall. Bars where
// the money flow index is still warming up reset the line to the close. The
// close only seeds the recurrence: a bar whose line or lagged line is a
// warm-up value is never bullish and never crosses.
type AlphaTrendState struct {
	TrueRange      []float64
	ATR            []optional.Option[float64]
	MoneyFlowIndex []optional.Option[float64]
	UpperTrail     []optional.Option[float64] // low - atr*coeff
	LowerTrail     []optional.Option[float64] // high + atr*coeff
	TrendLine      []float64                  // k1
	Lagged         []optional.Option[float64] // k2, None for the first two bars
	CrossUp        []bool
	CrossDown      []bool
	Warmup         []bool // TrendLine[i] is the close, not the recurrence
}

// ComputeAlphaTrend runs the AlphaTrend recurrence front to back in a single
// pass. Fewer than period+2 bars yields a state made entirely of warm-up values.
func ComputeAlphaTrend(bars []core.Bar, period int, coeff float64) (*AlphaTrendState, error) {
	if period <= 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "alphatrend period must be positive, got %d", period)
	}
	if coeff < 0 || math.IsNaN(coeff) {
		return nil, core.Errorf(core.ErrInvalidParameter, "alphatrend coeff must be non-negative, got %v", coeff)
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "alphatrend needs at least one bar")
	}

	n := len(bars)
	high, low, close, volume := core.Columns(bars)

	st := &AlphaTrendState{
		TrueRange:      TrueRange(high, low, close),
		ATR:            make([]optional.Option[float64], n),
		MoneyFlowIndex: MFI(high, low, close, volume, period),
		UpperTrail:     make([]optional.Option[float64], n),
		LowerTrail:     make([]optional.Option[float64], n),
		TrendLine:      make([]float64, n),
		Lagged:         make([]optional.Option[float64], n),
		CrossUp:        make([]bool, n),
		CrossDown:      make([]bool, n),
		Warmup:         make([]bool, n),
	}

	atr := SMA(st.TrueRange, period)
	for i := 0; i < n; i++ {
		j := i - (period - 1)
		if j < 0 {
			st.ATR[i] = optional.None[float64]()
			st.UpperTrail[i] = optional.None[float64]()
			st.LowerTrail[i] = optional.None[float64]()
			continue
		}
		st.ATR[i] = optional.Some(atr[j])
		st.UpperTrail[i] = optional.Some(low[i] - atr[j]*coeff)
		st.LowerTrail[i] = optional.Some(high[i] + atr[j]*coeff)
	}

	prev := 0.0
	for i := 0; i < n; i++ {
		mfi := st.MoneyFlowIndex[i]
		switch {
		case mfi.IsNone() || st.ATR[i].IsNone():
			st.TrendLine[i] = close[i]
			st.Warmup[i] = true
		case mfi.Unwrap() >= 50:
			st.TrendLine[i] = math.Max(st.UpperTrail[i].Unwrap(), prev)
		default:
			st.TrendLine[i] = math.Min(st.LowerTrail[i].Unwrap(), prev)
		}
		prev = st.TrendLine[i]
	}

	for i := 0; i < n; i++ {
		if i < trendLagBars {
			st.Lagged[i] = optional.None[float64]()
			continue
		}
		st.Lagged[i] = optional.Some(st.TrendLine[i-trendLagBars])
	}

	for i := 1; i < n; i++ {
		if !st.settled(i) || !st.settled(i-1) {
			continue
		}
		k1, k2 := st.TrendLine[i], st.Lagged[i].Unwrap()
		pk1, pk2 := st.TrendLine[i-1], st.Lagged[i-1].Unwrap()
		st.CrossUp[i] = k1 > k2 && pk1 <= pk2
		st.CrossDown[i] = k1 < k2 && pk1 >= pk2
	}

	return st, nil
}

// Len is the number of bars covered.
func (s *AlphaTrendState) Len() int { return len(s.TrendLine) }

// Bullish reports k1 > k2 at bar i. Warm-up bars are never bullish.
func (s *AlphaTrendState) Bullish(i int) bool {
	if i < 0 || i >= s.Len() || !s.settled(i) {
		return false
	}
	return s.TrendLine[i] > s.Lagged[i].Unwrap()
}

// settled reports whether bar i and its lagged bar both come from the
// recurrence rather than the warm-up close.
func (s *AlphaTrendState) settled(i int) bool {
	return s.Lagged[i].IsSome() && !s.Warmup[i] && !s.Warmup[i-trendLagBars]
}

// LastBullish reports the newest bar's trend direction.
func (s *AlphaTrendState) LastBullish() bool { return s.Bullish(s.Len() - 1) }

// LastCrossUp reports whether the newest bar crossed up.
func (s *AlphaTrendState) LastCrossUp() bool {
	n := s.Len()
	return n > 0 && s.CrossUp[n-1]
}

// LastCrossDown reports whether the newest bar crossed down.
func (s *AlphaTrendState) LastCrossDown() bool {
	n := s.Len()
	return n > 0 && s.CrossDown[n-1]
}
