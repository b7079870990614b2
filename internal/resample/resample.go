// Package resample aggregates fine-grained bars into coarser buckets.
package resample

import (
	"time"

	"github.com/newthinker/predator/internal/core"
)

// Option tunes Resample.
type Option func(*options)

type options struct {
	cutoff time.Time
}

// WithCutoff drops the trailing bucket when it has not closed by cutoff.
func WithCutoff(cutoff time.Time) Option {
	return func(o *options) { o.cutoff = cutoff }
}

// Resample folds ordered bars into period-wide buckets aligned to UTC
// midnight: first open, max high, min low, last close, summed volume. Each
// output bar is stamped with its bucket start. Buckets without input bars are
// not emitted, so gaps such as overnight sessions stay gaps.
func Resample(bars []core.Bar, period time.Duration, opts ...Option) ([]core.Bar, error) {
	if period <= 0 {
		return nil, core.Errorf(core.ErrInvalidParameter, "resample period must be positive, got %s", period)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]core.Bar, 0, len(bars)/int(max(period/time.Hour, 1))+1)
	var (
		cur    core.Bar
		bucket time.Time
		open   bool
	)
	for i, b := range bars {
		if i > 0 && !b.Time.After(bars[i-1].Time) {
			return nil, core.Errorf(core.ErrInvalidParameter, "bars out of order at index %d", i)
		}
		start := b.Time.UTC().Truncate(period)
		if open && start.Equal(bucket) {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
			continue
		}
		if open {
			out = append(out, cur)
		}
		bucket = start
		cur = core.Bar{Time: start, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		open = true
	}

	if open && (o.cutoff.IsZero() || !o.cutoff.Before(bucket.Add(period))) {
		out = append(out, cur)
	}
	return out, nil
}

// Series resamples a whole series into the target timeframe.
func Series(s core.BarSeries, tf core.Timeframe, opts ...Option) (core.BarSeries, error) {
	bars, err := Resample(s.Bars, tf.Duration(), opts...)
	if err != nil {
		return core.BarSeries{}, err
	}
	return core.BarSeries{Symbol: s.Symbol, Timeframe: tf, Bars: bars}, nil
}

// Hours is shorthand for an n-hour bucket.
func Hours(n int) time.Duration { return time.Duration(n) * time.Hour }
