package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAlphaTrend_InvalidParameters(t *testing.T) {
	bars := barsFromCloses(linearCloses(30, 100, 1), 1000)

	_, err := ComputeAlphaTrend(bars, 0, 1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = ComputeAlphaTrend(bars, -3, 1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = ComputeAlphaTrend(nil, 14, 1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	_, err = ComputeAlphaTrend(bars, 14, -1)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestComputeAlphaTrend_HandComputed(t *testing.T) {
	// zero volume pins the money flow index at neutral 50, so every defined
	// bar takes the upward ratchet
	bars := []core.Bar{
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
		{High: 12, Low: 10, Close: 11},
		{High: 14, Low: 12, Close: 13},
		{High: 20, Low: 18, Close: 19},
	}

	st, err := ComputeAlphaTrend(bars, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{2, 2, 2, 2, 3, 7}, st.TrueRange)

	assert.True(t, st.ATR[0].IsNone())
	assert.Equal(t, 2.0, st.ATR[1].Unwrap())
	assert.Equal(t, 2.5, st.ATR[4].Unwrap())
	assert.Equal(t, 5.0, st.ATR[5].Unwrap())

	assert.True(t, st.MoneyFlowIndex[1].IsNone())
	assert.Equal(t, NeutralMFI, st.MoneyFlowIndex[2].Unwrap())

	assert.Equal(t, 13.0, st.UpperTrail[5].Unwrap())
	assert.Equal(t, 25.0, st.LowerTrail[5].Unwrap())

	// bars 0 and 1 are warm-up and take the close
	assert.Equal(t, []float64{10, 11, 11, 11, 11, 13}, st.TrendLine)

	assert.True(t, st.Lagged[0].IsNone())
	assert.True(t, st.Lagged[1].IsNone())
	assert.Equal(t, 10.0, st.Lagged[2].Unwrap())
	assert.Equal(t, 11.0, st.Lagged[5].Unwrap())

	assert.Equal(t, []bool{false, false, false, false, false, true}, st.CrossUp)
	assert.True(t, st.LastCrossUp())
	assert.True(t, st.LastBullish())
	assert.False(t, st.Bullish(4))
	assert.False(t, st.Bullish(0))

	assert.Equal(t, []bool{true, true, false, false, false, false}, st.Warmup)
	// 11 > 10 at bar 2, but 10 is a warm-up close
	assert.False(t, st.Bullish(2))
	assert.False(t, st.Bullish(3))
}

func TestComputeAlphaTrend_WarmupUsesClose(t *testing.T) {
	bars := barsFromCloses(linearCloses(40, 50, 0.5), 1000)
	st, err := ComputeAlphaTrend(bars, DefaultAlphaTrendPeriod, DefaultAlphaTrendCoeff)
	require.NoError(t, err)

	for i := 0; i < DefaultAlphaTrendPeriod; i++ {
		assert.True(t, st.MoneyFlowIndex[i].IsNone(), "bar %d", i)
		assert.Equal(t, bars[i].Close, st.TrendLine[i], "bar %d", i)
	}
	assert.True(t, st.MoneyFlowIndex[DefaultAlphaTrendPeriod].IsSome())
}

func TestComputeAlphaTrend_WarmupNeverSignals(t *testing.T) {
	bars := barsFromCloses(linearCloses(20, 50, 1), 1000)
	st, err := ComputeAlphaTrend(bars, DefaultAlphaTrendPeriod, DefaultAlphaTrendCoeff)
	require.NoError(t, err)

	for i := 0; i < st.Len(); i++ {
		if st.Warmup[i] || (i >= 2 && st.Warmup[i-2]) {
			assert.False(t, st.Bullish(i), "bar %d", i)
			assert.False(t, st.CrossUp[i], "bar %d", i)
			assert.False(t, st.CrossDown[i], "bar %d", i)
		}
	}
}

func TestComputeAlphaTrend_ShortSeriesIsDegenerate(t *testing.T) {
	bars := barsFromCloses([]float64{10, 11, 12}, 100)
	st, err := ComputeAlphaTrend(bars, 14, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, st.TrendLine)
	assert.False(t, st.LastBullish())
}

// wave returns a deterministic series with alternating rallies and selloffs
// and uneven volume, so both MFI regimes occur.
func wave(n int) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		c := 100 + 15*math.Sin(float64(i)/9) + 0.1*float64(i)
		vol := 1000 + 400*math.Cos(float64(i)/4)
		bars[i] = core.Bar{
			Time:   testEpoch.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.3,
			High:   c + 1 + 0.5*math.Abs(math.Sin(float64(i))),
			Low:    c - 1 - 0.5*math.Abs(math.Cos(float64(i))),
			Close:  c,
			Volume: vol,
		}
	}
	return bars
}

func TestComputeAlphaTrend_RatchetMonotonicity(t *testing.T) {
	st, err := ComputeAlphaTrend(wave(300), DefaultAlphaTrendPeriod, DefaultAlphaTrendCoeff)
	require.NoError(t, err)

	var bullishBars, bearishBars int
	for i := 1; i < st.Len(); i++ {
		mfi := st.MoneyFlowIndex[i]
		if mfi.IsNone() || st.MoneyFlowIndex[i-1].IsNone() {
			continue
		}
		if mfi.Unwrap() >= 50 {
			bullishBars++
			assert.GreaterOrEqual(t, st.TrendLine[i], st.TrendLine[i-1], "bar %d must not fall in bullish regime", i)
		} else {
			bearishBars++
			assert.LessOrEqual(t, st.TrendLine[i], st.TrendLine[i-1], "bar %d must not rise in bearish regime", i)
		}
	}
	assert.Positive(t, bullishBars)
	assert.Positive(t, bearishBars)
}

func TestComputeAlphaTrend_CrossesMutuallyExclusive(t *testing.T) {
	st, err := ComputeAlphaTrend(wave(300), DefaultAlphaTrendPeriod, DefaultAlphaTrendCoeff)
	require.NoError(t, err)

	var ups, downs int
	for i := 0; i < st.Len(); i++ {
		assert.False(t, st.CrossUp[i] && st.CrossDown[i], "bar %d", i)
		if st.CrossUp[i] {
			ups++
		}
		if st.CrossDown[i] {
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Positive(t, downs)
}

func TestComputeAlphaTrend_LaggedIsShiftedTrendLine(t *testing.T) {
	st, err := ComputeAlphaTrend(wave(60), 10, 1.5)
	require.NoError(t, err)
	for i := 2; i < st.Len(); i++ {
		assert.Equal(t, st.TrendLine[i-2], st.Lagged[i].Unwrap())
	}
}

func TestComputeAlphaTrend_FallingMarketRatchetsDown(t *testing.T) {
	bars := barsFromCloses(linearCloses(40, 200, -2), 5000)
	st, err := ComputeAlphaTrend(bars, 14, 1)
	require.NoError(t, err)

	for i := 15; i < st.Len(); i++ {
		assert.Less(t, st.MoneyFlowIndex[i].Unwrap(), 50.0)
		assert.LessOrEqual(t, st.TrendLine[i], st.TrendLine[i-1])
	}
	assert.False(t, st.LastBullish())
}

func TestComputeAlphaTrend_Deterministic(t *testing.T) {
	bars := wave(120)
	a, err := ComputeAlphaTrend(bars, 14, 1)
	require.NoError(t, err)
	b, err := ComputeAlphaTrend(bars, 14, 1)
	require.NoError(t, err)
	assert.Equal(t, a.TrendLine, b.TrendLine)
	assert.Equal(t, a.CrossUp, b.CrossUp)
}
