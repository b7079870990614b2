package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/moznion/go-optional"
)

// NeutralMFI is reported when a window carries no money flow at all.
const NeutralMFI = 50.0

// TrueRange returns max(H-L, |H-prevC|, |L-prevC|) per bar. The first bar has
// no previous close and uses H-L.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		prev := close[i-1]
		out[i] = math.Max(hl, math.Max(math.Abs(high[i]-prev), math.Abs(low[i]-prev)))
	}
	return out
}

// RSI is Wilder's relative strength index. Values before index period are
// warm-up and should be ignored.
func RSI(close []float64, period int) []float64 {
	if period <= 0 || len(close) <= period {
		return make([]float64, len(close))
	}
	return talib.Rsi(close, period)
}

// MFI is the money flow index aligned with the input. Bars before index
// period are None. A window whose volume sums to zero reports NeutralMFI.
func MFI(high, low, close, volume []float64, period int) []optional.Option[float64] {
	n := len(close)
	out := make([]optional.Option[float64], n)
	for i := range out {
		out[i] = optional.None[float64]()
	}
	if period <= 0 || n <= period {
		return out
	}

	raw := talib.Mfi(high, low, close, volume, period)

	var windowVolume float64
	for i := 1; i <= period; i++ {
		windowVolume += volume[i]
	}
	for i := period; i < n; i++ {
		if i > period {
			windowVolume += volume[i] - volume[i-period]
		}
		if windowVolume <= 0 {
			out[i] = optional.Some(NeutralMFI)
			continue
		}
		out[i] = optional.Some(raw[i])
	}
	return out
}

// ADX is the average directional index. The first 2*period-1 values are warm-up.
func ADX(high, low, close []float64, period int) []float64 {
	if period <= 0 || len(close) < 2*period {
		return make([]float64, len(close))
	}
	return talib.Adx(high, low, close, period)
}

// WilderATR is the Wilder-smoothed average true range used for bracket
// sizing. It differs from the simple-average ATR inside AlphaTrend.
func WilderATR(high, low, close []float64, period int) []float64 {
	if period <= 0 || len(close) <= period {
		return make([]float64, len(close))
	}
	return talib.Atr(high, low, close, period)
}

// LastValue returns the newest element, or zero for an empty slice.
func LastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
