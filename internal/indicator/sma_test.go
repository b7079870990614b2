package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA_Calculate(t *testing.T) {
	prices := []float64{10, 11, 12, 13, 14, 15}

	// (10+11+12)/3 = 11, then rolling
	assert.Equal(t, []float64{11, 12, 13, 14}, SMA(prices, 3))
}

func TestSMA_NotEnoughData(t *testing.T) {
	assert.Empty(t, SMA([]float64{10, 11}, 5))
	assert.Empty(t, SMA([]float64{10, 11}, 0))
}

func TestLastSMA(t *testing.T) {
	v, ok := LastSMA([]float64{1, 2, 3, 4, 5}, 2)
	require.True(t, ok)
	assert.Equal(t, 4.5, v)

	_, ok = LastSMA([]float64{1}, 2)
	assert.False(t, ok)
}

func TestPercentChange(t *testing.T) {
	prices := []float64{100, 101, 102, 103, 110}
	v, ok := PercentChange(prices, 5)
	require.True(t, ok)
	assert.InDelta(t, 0.10, v, 1e-12)

	_, ok = PercentChange(prices, 6)
	assert.False(t, ok)
	_, ok = PercentChange([]float64{0, 1}, 2)
	assert.False(t, ok)
}
