package bars

import (
	"context"
	"time"

	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"go.uber.org/zap"
)

// SyncResult reports how many bars were offered per symbol.
type SyncResult struct {
	Symbol   string
	Inserted int
	Err      error
}

// Sync pulls hourly bars from p for each symbol, starting just after the
// newest stored bar (or at from for unseen symbols), and archives them.
// A failing symbol is reported in its result and does not stop the others.
// onDone is called after each symbol and may be nil.
func (s *Store) Sync(ctx context.Context, p collector.BarProvider, symbols []string, from time.Time, adj core.Adjustment, onDone func(SyncResult)) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.syncOne(ctx, p, sym, from, adj)
		if res.Err != nil {
			s.log.Warn("bar sync failed", zap.String("symbol", sym), zap.Error(res.Err))
		} else {
			s.log.Debug("bar sync", zap.String("symbol", sym), zap.Int("bars", res.Inserted))
		}
		results = append(results, res)
		if onDone != nil {
			onDone(res)
		}
	}
	return results, nil
}

func (s *Store) syncOne(ctx context.Context, p collector.BarProvider, sym string, from time.Time, adj core.Adjustment) SyncResult {
	res := SyncResult{Symbol: sym}
	latest, err := s.LatestTimestamp(ctx, sym)
	if err != nil {
		res.Err = err
		return res
	}
	start := from
	if latest.IsSome() {
		start = latest.Unwrap().Add(time.Hour)
	}

	got, err := p.GetBars(ctx, collector.Request{
		Symbols:    []string{sym},
		Timeframe:  core.Timeframe1H,
		Start:      start,
		Adjustment: adj,
	})
	if err != nil {
		res.Err = err
		return res
	}
	series, ok := got[sym]
	if !ok {
		return res
	}
	res.Inserted, res.Err = s.Insert(ctx, sym, series.Bars)
	return res
}
