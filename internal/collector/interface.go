package collector

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/predator/internal/core"
)

// Request asks a provider for bars of several symbols over [Start, End].
// A zero End means "up to now".
type Request struct {
	Symbols    []string
	Timeframe  core.Timeframe
	Start      time.Time
	End        time.Time
	Adjustment core.Adjustment
}

// Validate rejects requests no provider could serve.
func (r Request) Validate() error {
	if len(r.Symbols) == 0 {
		return core.Errorf(core.ErrInvalidParameter, "no symbols requested")
	}
	if r.Timeframe.Duration() == 0 {
		return core.Errorf(core.ErrInvalidParameter, "unsupported timeframe %q", r.Timeframe)
	}
	if r.Start.IsZero() {
		return core.Errorf(core.ErrInvalidParameter, "start time required")
	}
	if !r.End.IsZero() && r.End.Before(r.Start) {
		return core.Errorf(core.ErrInvalidParameter, "end %s before start %s", r.End, r.Start)
	}
	return nil
}

// BarProvider supplies ordered bars per symbol.
//
// Symbols without data are omitted from the result rather than failing the
// batch. A failure of the whole request is reported as core.ErrDataFetchFailure.
type BarProvider interface {
	Name() string
	GetBars(ctx context.Context, req Request) (map[string]core.BarSeries, error)
}

// SortBars orders bars by time and drops duplicate timestamps, keeping the
// later occurrence.
func SortBars(bars []core.Bar) []core.Bar {
	if len(bars) == 0 {
		return bars
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	out := bars[:0]
	for _, b := range bars {
		if n := len(out); n > 0 && out[n-1].Time.Equal(b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
