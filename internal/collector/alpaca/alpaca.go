package alpaca

import (
	"context"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	"go.uber.org/zap"
)

// barsClient is the part of the marketdata client used here.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Options configures the Alpaca data client.
type Options struct {
	APIKey    string
	APISecret string
	BaseURL   string
	// Feed is "iex" for free accounts, "sip" otherwise.
	Feed string
}

// Alpaca serves stock bars from the Alpaca data API.
type Alpaca struct {
	client barsClient
	log    *zap.Logger
}

func New(opts Options, log *zap.Logger) (*Alpaca, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "alpaca api key and secret are required")
	}
	feed := opts.Feed
	if feed == "" {
		feed = marketdata.IEX
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
		Feed:      feed,
	})
	return newWithClient(client, log), nil
}

func newWithClient(client barsClient, log *zap.Logger) *Alpaca {
	log = logger.OrNop(log)
	return &Alpaca{client: client, log: log}
}

func (a *Alpaca) Name() string { return "alpaca" }

// GetBars issues one multi-symbol request. The client pages internally and
// is not context-aware, so ctx is only checked before the call.
func (a *Alpaca) GetBars(ctx context.Context, req collector.Request) (map[string]core.BarSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := a.client.GetMultiBars(req.Symbols, marketdata.GetBarsRequest{
		TimeFrame:  toTimeFrame(req.Timeframe),
		Adjustment: toAdjustment(req.Adjustment),
		Start:      req.Start,
		End:        req.End,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrDataFetchFailure, err)
	}

	out := make(map[string]core.BarSeries, len(raw))
	for sym, bars := range raw {
		if len(bars) == 0 {
			continue
		}
		converted := make([]core.Bar, 0, len(bars))
		for _, b := range bars {
			converted = append(converted, core.Bar{
				Time:   b.Timestamp.UTC(),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: float64(b.Volume),
			})
		}
		out[sym] = core.BarSeries{Symbol: sym, Timeframe: req.Timeframe, Bars: collector.SortBars(converted)}
	}
	a.log.Debug("alpaca bars fetched",
		zap.Int("requested", len(req.Symbols)),
		zap.Int("returned", len(out)),
		zap.Duration("span", spanOf(req)))
	return out, nil
}

func toTimeFrame(tf core.Timeframe) marketdata.TimeFrame {
	switch tf {
	case core.Timeframe1H:
		return marketdata.OneHour
	case core.Timeframe4H:
		return marketdata.NewTimeFrame(4, marketdata.Hour)
	default:
		return marketdata.OneDay
	}
}

func toAdjustment(adj core.Adjustment) marketdata.Adjustment {
	switch adj {
	case core.AdjustmentRaw:
		return marketdata.Raw
	case core.AdjustmentSplits:
		return marketdata.Split
	default:
		return marketdata.All
	}
}

func spanOf(req collector.Request) time.Duration {
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(req.Start)
}
