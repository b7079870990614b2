package indicator

import "math"

const (
	DefaultDivergenceWindow = 50
	DefaultDivergenceOrder  = 5

	// suppressedOscillator caps the second trough's oscillator value.
	suppressedOscillator = 45.0

	rsiSupportLevel     = 40.0
	rsiSupportTolerance = 2.0
)

// LocalMinima returns the indices of points strictly below every neighbour
// within order positions on each side. Neighbours past either end are not
// compared, but the first and last samples never qualify, and a flat plateau
// never produces a minimum.
func LocalMinima(series []float64, order int) []int {
	n := len(series)
	if order <= 0 || n < 3 {
		return nil
	}

	var out []int
	for i := 1; i < n-1; i++ {
		isMin := true
		for k := 1; k <= order && isMin; k++ {
			if j := i - k; j >= 0 && series[i] >= series[j] {
				isMin = false
			}
			if j := i + k; j < n && series[i] >= series[j] {
				isMin = false
			}
		}
		if isMin {
			out = append(out, i)
		}
	}
	return out
}

// BullishDivergence reports a lower low in price paired with a higher low in
// the oscillator over the trailing window. The oscillator is sampled at the
// price troughs, not at its own troughs, and its second value must still be
// below 45. Short input returns false.
func BullishDivergence(price, oscillator []float64, window, order int) bool {
	if window <= 0 || len(price) < window || len(oscillator) < window {
		return false
	}

	p := price[len(price)-window:]
	o := oscillator[len(oscillator)-window:]

	troughs := LocalMinima(p, order)
	if len(troughs) < 2 {
		return false
	}
	prev, last := troughs[len(troughs)-2], troughs[len(troughs)-1]

	return p[last] < p[prev] && o[last] > o[prev] && o[last] < suppressedOscillator
}

// RSISupportBounce reports the previous RSI sitting within 2 points of 40 and
// the current RSI turning up from it.
func RSISupportBounce(rsi []float64) bool {
	n := len(rsi)
	if n < 3 {
		return false
	}
	prev, cur := rsi[n-2], rsi[n-1]
	return math.Abs(prev-rsiSupportLevel) <= rsiSupportTolerance && cur > prev
}
