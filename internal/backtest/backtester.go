// Package backtest replays the scorer and decision policy bar by bar over
// historical data and simulates bracket fills.
package backtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"github.com/newthinker/predator/internal/policy"
	"github.com/newthinker/predator/internal/resample"
	"github.com/newthinker/predator/internal/scoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Scorer evaluates one symbol on the newest bar of bars.
type Scorer interface {
	Score(symbol string, bars []core.Bar, snap *scoring.Snapshot) (scoring.Result, error)
}

type Config struct {
	// BaseTimeframe is what the provider is asked for; Timeframe is what
	// the scorer sees. Equal values skip resampling.
	BaseTimeframe core.Timeframe
	Timeframe     core.Timeframe
	Adjustment    core.Adjustment
	Benchmark     string
	Peers         []string
	InitialEquity decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		BaseTimeframe: core.Timeframe1H,
		Timeframe:     core.Timeframe4H,
		Adjustment:    core.AdjustmentAll,
		Benchmark:     "SPY",
		InitialEquity: decimal.NewFromInt(100_000),
	}
}

// Backtester runs the live decision path against historical data
type Backtester struct {
	provider collector.BarProvider
	scorer   Scorer
	policy   *policy.Policy
	cfg      Config
	log      *zap.Logger
}

func New(provider collector.BarProvider, scorer Scorer, pol *policy.Policy, cfg Config, log *zap.Logger) *Backtester {
	if cfg.BaseTimeframe == "" {
		cfg.BaseTimeframe = core.Timeframe1H
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = cfg.BaseTimeframe
	}
	if !cfg.InitialEquity.IsPositive() {
		cfg.InitialEquity = decimal.NewFromInt(100_000)
	}
	log = logger.OrNop(log)
	return &Backtester{provider: provider, scorer: scorer, policy: pol, cfg: cfg, log: log}
}

// Run replays symbol over [start, end].
//
// On every bar from the MinBars-th on, an open position is first checked
// against its bracket using that bar's range, then the scorer and policy
// run on the bar's close. Entries and trend-flip exits fill at the close.
// When a bar reaches both stop and target the stop is assumed to fill.
func (b *Backtester) Run(ctx context.Context, symbol string, start, end time.Time) (*Result, error) {
	series, err := b.load(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	bars := series[symbol]
	if len(bars) < scoring.MinBars {
		return nil, core.Errorf(core.ErrInsufficientHistory,
			"%s: %d %s bars between %s and %s, need %d", symbol, len(bars), b.cfg.Timeframe,
			start.Format(time.DateOnly), end.Format(time.DateOnly), scoring.MinBars)
	}

	res := &Result{
		Symbol:        symbol,
		Timeframe:     b.cfg.Timeframe,
		StartDate:     start,
		EndDate:       end,
		Bars:          len(bars),
		InitialEquity: b.cfg.InitialEquity,
	}
	cash := b.cfg.InitialEquity
	var open *Trade

	for i := scoring.MinBars - 1; i < len(bars); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bar := bars[i]

		if open != nil && bar.Time.After(open.EntryTime) {
			if price, reason, hit := bracketExit(*open, bar); hit {
				open.close(bar.Time, price, reason)
				cash = cash.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(open.Quantity)))
				res.Trades = append(res.Trades, *open)
				open = nil
			}
		}

		scored, err := b.scorer.Score(symbol, bars[:i+1], scoring.NewSnapshot(b.cfg.Benchmark, asOf(series, bar.Time)))
		if err != nil {
			return nil, fmt.Errorf("backtest %s at %s: %w", symbol, bar.Time.Format(time.RFC3339), err)
		}
		res.Evaluations++

		holding := policy.Flat
		equity := cash
		if open != nil {
			holding = policy.Holding{State: core.StateLong, Quantity: open.Quantity}
			equity = equity.Add(decimal.NewFromFloat(bar.Close).Mul(decimal.NewFromInt(open.Quantity)))
		}

		opt := b.policy.Decide(holding, policy.FromResult(scored), equity)
		if opt.IsNone() {
			continue
		}
		intent := opt.Unwrap()
		intent.CreatedAt = bar.Time

		switch intent.Side {
		case core.SideBuy:
			cost := decimal.NewFromFloat(bar.Close).Mul(decimal.NewFromInt(intent.Quantity))
			if cost.GreaterThan(cash) {
				b.log.Debug("entry skipped, insufficient cash", zap.String("symbol", symbol), zap.Time("at", bar.Time))
				continue
			}
			cash = cash.Sub(cost)
			res.Intents = append(res.Intents, intent)
			open = &Trade{
				Symbol:     symbol,
				Quantity:   intent.Quantity,
				EntryTime:  bar.Time,
				EntryPrice: bar.Close,
				EntryScore: intent.Score,
				Signals:    intent.Signals,
				StopLoss:   intent.StopLossPrice,
				TakeProfit: intent.TakeProfitPrice,
			}
		case core.SideSell:
			res.Intents = append(res.Intents, intent)
			open.close(bar.Time, bar.Close, ExitTrendFlip)
			cash = cash.Add(decimal.NewFromFloat(bar.Close).Mul(decimal.NewFromInt(open.Quantity)))
			res.Trades = append(res.Trades, *open)
			open = nil
		}
	}

	final := cash
	if open != nil {
		last := bars[len(bars)-1]
		open.ExitPrice = last.Close
		open.Return = (last.Close - open.EntryPrice) / open.EntryPrice
		final = final.Add(decimal.NewFromFloat(last.Close).Mul(decimal.NewFromInt(open.Quantity)))
		res.Trades = append(res.Trades, *open)
	}
	res.FinalEquity = final
	res.Stats = CalculateStats(res.Trades)

	b.log.Info("backtest complete",
		zap.String("symbol", symbol),
		zap.Int("bars", res.Bars),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("total_return_pct", res.Stats.TotalReturn))
	return res, nil
}

// bracketExit checks bar against the open trade's stop and target.
func bracketExit(t Trade, bar core.Bar) (price float64, reason ExitReason, hit bool) {
	switch {
	case bar.Low <= t.StopLoss:
		return min(t.StopLoss, bar.Open), ExitStopLoss, true
	case bar.High >= t.TakeProfit:
		return max(t.TakeProfit, bar.Open), ExitTakeProfit, true
	}
	return 0, "", false
}

// load fetches the symbol plus benchmark and peers, resampled to the
// scoring timeframe. Only the traded symbol is required.
func (b *Backtester) load(ctx context.Context, symbol string, start, end time.Time) (map[string][]core.Bar, error) {
	symbols := append([]string{symbol}, b.cfg.Peers...)
	if b.cfg.Benchmark != "" {
		symbols = append(symbols, b.cfg.Benchmark)
	}
	slices.Sort(symbols)
	symbols = slices.Compact(symbols)

	got, err := b.provider.GetBars(ctx, collector.Request{
		Symbols:    symbols,
		Timeframe:  b.cfg.BaseTimeframe,
		Start:      start,
		End:        end,
		Adjustment: b.cfg.Adjustment,
	})
	if err != nil {
		return nil, err
	}
	if s, ok := got[symbol]; !ok || s.Len() == 0 {
		return nil, core.Errorf(core.ErrNoData, "%s from %s", symbol, b.provider.Name())
	}

	out := make(map[string][]core.Bar, len(got))
	for sym, s := range got {
		bars := s.Bars
		if b.cfg.Timeframe != b.cfg.BaseTimeframe {
			bars, err = resample.Resample(bars, b.cfg.Timeframe.Duration())
			if err != nil {
				return nil, fmt.Errorf("resample %s: %w", sym, err)
			}
		}
		out[sym] = bars
	}
	return out, nil
}

// asOf truncates every series to bars at or before t so benchmark and peer
// factors never see the future.
func asOf(series map[string][]core.Bar, t time.Time) map[string][]core.Bar {
	out := make(map[string][]core.Bar, len(series))
	for sym, bars := range series {
		n := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(t) })
		out[sym] = bars[:n]
	}
	return out
}
