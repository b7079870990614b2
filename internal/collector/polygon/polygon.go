package polygon

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/logger"
	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"
)

const pageLimit = 50000

// AggsIterator is the subset of the client iterator the provider reads.
type AggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// AggsAPI lists aggregate bars. The REST client satisfies it through clientAPI.
type AggsAPI interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) AggsIterator
}

type clientAPI struct {
	client *polygon.Client
}

func (c clientAPI) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) AggsIterator {
	return c.client.ListAggs(ctx, params, opts...)
}

// Polygon serves aggregate bars from polygon.io.
type Polygon struct {
	api AggsAPI
	log *zap.Logger
}

func New(apiKey string, log *zap.Logger) (*Polygon, error) {
	if apiKey == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "polygon api key is required")
	}
	return NewWithAPI(clientAPI{client: polygon.New(apiKey)}, log), nil
}

// NewWithAPI wires an arbitrary aggregates source, typically a test double.
func NewWithAPI(api AggsAPI, log *zap.Logger) *Polygon {
	log = logger.OrNop(log)
	return &Polygon{api: api, log: log}
}

func (p *Polygon) Name() string { return "polygon" }

func (p *Polygon) GetBars(ctx context.Context, req collector.Request) (map[string]core.BarSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	multiplier, timespan := toTimespan(req.Timeframe)
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}

	out := make(map[string]core.BarSeries, len(req.Symbols))
	var lastErr error
	failed := 0
	for _, sym := range req.Symbols {
		params := models.ListAggsParams{
			Ticker:     sym,
			Multiplier: multiplier,
			Timespan:   timespan,
			From:       models.Millis(req.Start),
			To:         models.Millis(end),
		}.WithAdjusted(req.Adjustment != core.AdjustmentRaw).
			WithOrder(models.Asc).
			WithLimit(pageLimit)

		iter := p.api.ListAggs(ctx, params)
		var bars []core.Bar
		for iter.Next() {
			agg := iter.Item()
			bars = append(bars, core.Bar{
				Time:   time.Time(agg.Timestamp).UTC(),
				Open:   agg.Open,
				High:   agg.High,
				Low:    agg.Low,
				Close:  agg.Close,
				Volume: agg.Volume,
			})
		}
		if err := iter.Err(); err != nil {
			failed++
			lastErr = fmt.Errorf("%s: %w", sym, err)
			p.log.Warn("polygon aggregates failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		out[sym] = core.BarSeries{Symbol: sym, Timeframe: req.Timeframe, Bars: collector.SortBars(bars)}
	}

	if failed == len(req.Symbols) {
		return nil, core.WrapError(core.ErrDataFetchFailure, lastErr)
	}
	return out, nil
}

func toTimespan(tf core.Timeframe) (int, models.Timespan) {
	switch tf {
	case core.Timeframe1H:
		return 1, models.Hour
	case core.Timeframe4H:
		return 4, models.Hour
	default:
		return 1, models.Day
	}
}
