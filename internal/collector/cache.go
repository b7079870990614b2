package collector

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"go.uber.org/zap"
)

// CacheConfig is the refresh policy of a BarCache.
type CacheConfig struct {
	Timeframe       core.Timeframe
	Adjustment      core.Adjustment
	LookbackDays    int           // history loaded by a full prime
	RefreshLookback time.Duration // window re-fetched by an incremental refresh
	MaxBars         int           // newest bars kept per symbol
}

// DefaultCacheConfig keeps 1000 hourly bars, primed from 100 days and
// refreshed over the last 6 hours.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Timeframe:       core.Timeframe1H,
		Adjustment:      core.AdjustmentAll,
		LookbackDays:    100,
		RefreshLookback: 6 * time.Hour,
		MaxBars:         1000,
	}
}

// BarCache holds per-symbol bar history for a polling scheduler. A full
// prime replaces history; an incremental refresh fetches a short trailing
// window, merges it by timestamp and trims to MaxBars.
type BarCache struct {
	provider BarProvider
	cfg      CacheConfig
	log      *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	series   map[string][]core.Bar
	lastSync time.Time
}

func NewBarCache(provider BarProvider, cfg CacheConfig, log *zap.Logger) *BarCache {
	log = logger.OrNop(log)
	return &BarCache{
		provider: provider,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		series:   make(map[string][]core.Bar),
	}
}

// Prime loads LookbackDays of history for symbols, replacing what is cached.
// Symbols the provider has no data for are left out.
func (c *BarCache) Prime(ctx context.Context, symbols []string) error {
	now := c.now()
	got, err := c.fetch(ctx, symbols, now.AddDate(0, 0, -c.cfg.LookbackDays), now)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, s := range got {
		c.series[sym] = c.trim(SortBars(append([]core.Bar(nil), s.Bars...)))
	}
	c.lastSync = now
	c.log.Info("bar cache primed",
		zap.Int("requested", len(symbols)),
		zap.Int("received", len(got)),
		zap.Int("lookback_days", c.cfg.LookbackDays))
	return nil
}

// Refresh merges the last RefreshLookback of bars into the cache. Symbols
// that were never primed get a full prime instead.
func (c *BarCache) Refresh(ctx context.Context, symbols []string) error {
	var known, unknown []string
	c.mu.RLock()
	for _, sym := range symbols {
		if _, ok := c.series[sym]; ok {
			known = append(known, sym)
		} else {
			unknown = append(unknown, sym)
		}
	}
	c.mu.RUnlock()

	if len(unknown) > 0 {
		if err := c.Prime(ctx, unknown); err != nil {
			return err
		}
	}
	if len(known) == 0 {
		return nil
	}

	now := c.now()
	got, err := c.fetch(ctx, known, now.Add(-c.cfg.RefreshLookback), now)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, s := range got {
		merged := append(append([]core.Bar(nil), c.series[sym]...), s.Bars...)
		c.series[sym] = c.trim(SortBars(merged))
	}
	c.lastSync = now
	c.log.Debug("bar cache refreshed", zap.Int("symbols", len(got)))
	return nil
}

// Bars returns a copy of the cached history for symbol.
func (c *BarCache) Bars(symbol string) ([]core.Bar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	bars, ok := c.series[symbol]
	if !ok {
		return nil, false
	}
	return append([]core.Bar(nil), bars...), true
}

// Snapshot copies every cached series. The result is owned by the caller.
func (c *BarCache) Snapshot() map[string][]core.Bar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]core.Bar, len(c.series))
	for sym, bars := range c.series {
		out[sym] = append([]core.Bar(nil), bars...)
	}
	return out
}

// LastSync is the time of the last successful prime or refresh.
func (c *BarCache) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSync
}

func (c *BarCache) fetch(ctx context.Context, symbols []string, start, end time.Time) (map[string]core.BarSeries, error) {
	got, err := c.provider.GetBars(ctx, Request{
		Symbols:    symbols,
		Timeframe:  c.cfg.Timeframe,
		Start:      start,
		End:        end,
		Adjustment: c.cfg.Adjustment,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrDataFetchFailure, err)
	}
	return got, nil
}

// trim keeps the newest MaxBars bars. Callers hold the write lock.
func (c *BarCache) trim(bars []core.Bar) []core.Bar {
	if c.cfg.MaxBars > 0 && len(bars) > c.cfg.MaxBars {
		return append([]core.Bar(nil), bars[len(bars)-c.cfg.MaxBars:]...)
	}
	return bars
}
