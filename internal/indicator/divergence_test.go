package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// twoTroughs returns a flat 100 series of length n with V-shaped dips
// bottoming at first (depth d1) and second (depth d2).
func twoTroughs(n, first, second int, d1, d2 float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100
		if dist := math.Abs(float64(i - first)); dist < 5 {
			out[i] = 100 - d1*(1-dist/5)
		}
		if dist := math.Abs(float64(i - second)); dist < 5 {
			out[i] = 100 - d2*(1-dist/5)
		}
	}
	return out
}

func flatWith(n int, base float64, points map[int]float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base
	}
	for i, v := range points {
		out[i] = v
	}
	return out
}

func TestLocalMinima(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		order  int
		want   []int
	}{
		{"single valley", []float64{5, 4, 3, 4, 5}, 2, []int{2}},
		{"edges never qualify", []float64{1, 2, 3, 2, 1}, 1, nil},
		{"plateau is not a minimum", []float64{3, 1, 1, 3}, 1, nil},
		{"neighbour beyond order ignored", []float64{0, 5, 5, 3, 5, 5, 5}, 1, []int{3}},
		{"neighbour within order blocks", []float64{0, 5, 5, 3, 5, 5, 5}, 3, nil},
		{"too short", []float64{1, 0}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocalMinima(tt.series, tt.order))
		})
	}
}

func TestBullishDivergence(t *testing.T) {
	price := twoTroughs(50, 15, 35, 10, 15) // lower low at 35

	t.Run("higher oscillator low while suppressed", func(t *testing.T) {
		osc := flatWith(50, 50, map[int]float64{15: 30, 35: 38})
		assert.True(t, BullishDivergence(price, osc, 50, 5))
	})

	t.Run("oscillator relationship flipped", func(t *testing.T) {
		osc := flatWith(50, 50, map[int]float64{15: 38, 35: 30})
		assert.False(t, BullishDivergence(price, osc, 50, 5))
	})

	t.Run("oscillator no longer suppressed", func(t *testing.T) {
		osc := flatWith(50, 50, map[int]float64{15: 30, 35: 46})
		assert.False(t, BullishDivergence(price, osc, 50, 5))
	})

	t.Run("higher price low", func(t *testing.T) {
		p := twoTroughs(50, 15, 35, 15, 10)
		osc := flatWith(50, 50, map[int]float64{15: 30, 35: 38})
		assert.False(t, BullishDivergence(p, osc, 50, 5))
	})

	t.Run("oscillator sampled at price troughs", func(t *testing.T) {
		// the oscillator's own troughs sit elsewhere and are ignored
		osc := flatWith(50, 50, map[int]float64{15: 30, 35: 38, 20: 10, 40: 5})
		assert.True(t, BullishDivergence(price, osc, 50, 5))
	})

	t.Run("short history", func(t *testing.T) {
		osc := flatWith(49, 50, nil)
		assert.False(t, BullishDivergence(price[:49], osc, 50, 5))
	})

	t.Run("only trailing window considered", func(t *testing.T) {
		long := append(flatWith(30, 100, map[int]float64{10: 1}), price...)
		osc := append(flatWith(30, 50, nil), flatWith(50, 50, map[int]float64{15: 30, 35: 38})...)
		assert.True(t, BullishDivergence(long, osc, 50, 5))
	})
}

func TestRSISupportBounce(t *testing.T) {
	assert.True(t, RSISupportBounce([]float64{50, 39, 41}))
	assert.True(t, RSISupportBounce([]float64{50, 42, 42.5}))
	assert.False(t, RSISupportBounce([]float64{50, 45, 46}))
	assert.False(t, RSISupportBounce([]float64{50, 41, 40}))
	assert.False(t, RSISupportBounce([]float64{39, 41}))
}
