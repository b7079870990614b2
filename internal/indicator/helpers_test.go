package indicator

import (
	"time"

	"github.com/newthinker/predator/internal/core"
)

var testEpoch = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// barsFromCloses builds hourly bars with a one-point range around each close.
func barsFromCloses(closes []float64, volume float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{
			Time:   testEpoch.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: volume,
		}
	}
	return bars
}

func linearCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
