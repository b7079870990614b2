package indicator

import (
	"testing"

	"github.com/newthinker/predator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrueRange(t *testing.T) {
	high := []float64{11, 12, 15, 10}
	low := []float64{9, 10, 13, 8}
	close := []float64{10, 11, 14, 9}

	// bar 0: H-L; bar 2: |15-11| beats H-L; bar 3: |8-14| beats H-L
	assert.Equal(t, []float64{2, 2, 4, 6}, TrueRange(high, low, close))
}

func TestMFI_WarmupAndNeutralVolume(t *testing.T) {
	bars := barsFromCloses(linearCloses(20, 100, 1), 0)
	h, l, c, v := columns(bars)

	mfi := MFI(h, l, c, v, 14)
	require.Len(t, mfi, 20)
	for i := 0; i < 14; i++ {
		assert.True(t, mfi[i].IsNone(), "bar %d", i)
	}
	for i := 14; i < 20; i++ {
		assert.Equal(t, NeutralMFI, mfi[i].Unwrap(), "bar %d", i)
	}
}

func TestMFI_RisingPricesAreBullish(t *testing.T) {
	bars := barsFromCloses(linearCloses(30, 100, 1), 1000)
	h, l, c, v := columns(bars)

	mfi := MFI(h, l, c, v, 14)
	assert.InDelta(t, 100.0, mfi[29].Unwrap(), 1e-9)
}

func TestMFI_TooShort(t *testing.T) {
	mfi := MFI([]float64{1}, []float64{1}, []float64{1}, []float64{1}, 14)
	require.Len(t, mfi, 1)
	assert.True(t, mfi[0].IsNone())
}

func TestRSI_Bounds(t *testing.T) {
	rsi := RSI(wavesCloses(200), 14)
	for i := 14; i < len(rsi); i++ {
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
	assert.Equal(t, make([]float64, 5), RSI([]float64{1, 2, 3, 4, 5}, 14))
}

func TestWilderATR_ConstantRange(t *testing.T) {
	bars := barsFromCloses(make([]float64, 30), 1)
	h, l, c, _ := columns(bars)
	atr := WilderATR(h, l, c, 14)
	assert.InDelta(t, 2.0, LastValue(atr), 1e-9)
}

func wavesCloses(n int) []float64 {
	out := make([]float64, n)
	for i, b := range wave(n) {
		out[i] = b.Close
	}
	return out
}

func columns(bars []core.Bar) (h, l, c, v []float64) {
	return core.Columns(bars)
}
