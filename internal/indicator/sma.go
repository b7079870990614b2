package indicator

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// LastSMA returns the newest SMA value. ok is false when fewer than period
// prices are available.
func LastSMA(prices []float64, period int) (value float64, ok bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// PercentChange returns prices[n-1]/prices[n-lookback] - 1, counting the newest
// bar as one of the lookback bars. ok is false when history is too short or the
// base price is zero.
func PercentChange(prices []float64, lookback int) (float64, bool) {
	n := len(prices)
	if lookback < 2 || n < lookback {
		return 0, false
	}
	base := prices[n-lookback]
	if base == 0 {
		return 0, false
	}
	return prices[n-1]/base - 1, true
}
