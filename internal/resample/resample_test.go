package resample

import (
	"testing"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func hourly(start time.Time, closes ...float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func TestResample_FourHourBuckets(t *testing.T) {
	// 13:00 to 20:00 spans the 12:00, 16:00 and 20:00 buckets
	bars := hourly(day.Add(13*time.Hour), 10, 12, 11, 15, 14, 13, 16, 17)

	out, err := Resample(bars, Hours(4))
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, core.Bar{Time: day.Add(12 * time.Hour), Open: 9.5, High: 13, Low: 9, Close: 11, Volume: 300}, out[0])
	assert.Equal(t, core.Bar{Time: day.Add(16 * time.Hour), Open: 14.5, High: 17, Low: 12, Close: 16, Volume: 400}, out[1])
	assert.Equal(t, core.Bar{Time: day.Add(20 * time.Hour), Open: 16.5, High: 18, Low: 16, Close: 17, Volume: 100}, out[2])
}

func TestResample_GapsStayGaps(t *testing.T) {
	bars := append(hourly(day.Add(14*time.Hour), 10, 11), hourly(day.Add(38*time.Hour), 20, 21)...)

	out, err := Resample(bars, Hours(4))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, day.Add(12*time.Hour), out[0].Time)
	assert.Equal(t, day.Add(36*time.Hour), out[1].Time)
}

func TestResample_CutoffDropsFormingBucket(t *testing.T) {
	bars := hourly(day.Add(12*time.Hour), 10, 11, 12, 13, 14, 15)

	out, err := Resample(bars, Hours(4), WithCutoff(day.Add(18*time.Hour)))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, day.Add(12*time.Hour), out[0].Time)

	out, err = Resample(bars, Hours(4), WithCutoff(day.Add(20*time.Hour)))
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestResample_PreservesOrder(t *testing.T) {
	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = float64(100 + i%7)
	}
	out, err := Resample(hourly(day, closes...), Hours(4))
	require.NoError(t, err)
	require.Len(t, out, 25)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].Time.After(out[i-1].Time))
	}
}

func TestResample_Errors(t *testing.T) {
	_, err := Resample(hourly(day, 1), 0)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	bars := hourly(day, 1, 2)
	bars[0], bars[1] = bars[1], bars[0]
	_, err = Resample(bars, Hours(4))
	assert.ErrorIs(t, err, core.ErrInvalidParameter)

	out, err := Resample(nil, Hours(4))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSeries(t *testing.T) {
	in := core.BarSeries{Symbol: "NVDA", Timeframe: core.Timeframe1H, Bars: hourly(day, 1, 2, 3, 4, 5)}
	out, err := Series(in, core.Timeframe4H)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", out.Symbol)
	assert.Equal(t, core.Timeframe4H, out.Timeframe)
	assert.Len(t, out.Bars, 2)
}
