package yahoo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
)

// validSymbol matches symbols like AAPL, BRK.B, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}([.-][A-Za-z]{1,4})?$`)

func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo serves bars from the public chart API. It needs no credentials and
// is the fallback provider for scans.
type Yahoo struct {
	client *resty.Client
	log    *zap.Logger
}

type Option func(*Yahoo)

func WithBaseURL(url string) Option {
	return func(y *Yahoo) { y.client.SetBaseURL(strings.TrimRight(url, "/")) }
}

func WithTimeout(d time.Duration) Option {
	return func(y *Yahoo) { y.client.SetTimeout(d) }
}

func WithLogger(log *zap.Logger) Option {
	return func(y *Yahoo) { y.log = log }
}

func New(opts ...Option) *Yahoo {
	y := &Yahoo{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetTimeout(defaultTimeout).
			SetHeader("User-Agent", "Mozilla/5.0"),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// GetBars fetches each symbol in turn. Symbols that fail are logged and
// omitted; the request fails only when every symbol failed.
func (y *Yahoo) GetBars(ctx context.Context, req collector.Request) (map[string]core.BarSeries, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}

	out := make(map[string]core.BarSeries, len(req.Symbols))
	var lastErr error
	failed := 0
	for _, sym := range req.Symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		bars, err := y.fetchHistory(ctx, sym, req.Start, end, req.Timeframe, req.Adjustment)
		if err != nil {
			failed++
			lastErr = err
			y.log.Warn("yahoo fetch failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		if len(bars) == 0 {
			continue
		}
		out[sym] = core.BarSeries{Symbol: sym, Timeframe: req.Timeframe, Bars: bars}
	}

	if failed == len(req.Symbols) {
		return nil, core.WrapError(core.ErrDataFetchFailure, lastErr)
	}
	return out, nil
}

func (y *Yahoo) toYahooSymbol(symbol string) string {
	// class shares: BRK.B -> BRK-B
	if i := strings.IndexByte(symbol, '.'); i > 0 && len(symbol)-i == 2 {
		return symbol[:i] + "-" + symbol[i+1:]
	}
	return symbol
}

func (y *Yahoo) toYahooInterval(tf core.Timeframe) string {
	switch tf {
	case core.Timeframe1H, core.Timeframe4H:
		// 4h is resampled locally from hourly bars
		return "1h"
	default:
		return "1d"
	}
}

func (y *Yahoo) fetchHistory(ctx context.Context, symbol string, start, end time.Time, tf core.Timeframe, adj core.Adjustment) ([]core.Bar, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"interval": y.toYahooInterval(tf),
			"period1":  strconv.FormatInt(start.Unix(), 10),
			"period2":  strconv.FormatInt(end.Unix(), 10),
			"events":   "div,splits",
		}).
		SetResult(&chartResponse{}).
		SetError(&chartResponse{}).
		Get("/" + y.toYahooSymbol(symbol))
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*chartResponse); ok && e.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo error %d: %s", resp.StatusCode(), e.Chart.Error.Description)
		}
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode())
	}

	result, ok := resp.Result().(*chartResponse)
	if !ok {
		return nil, fmt.Errorf("decoding response for %s", symbol)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	return toBars(result.Chart.Result[0], adj == core.AdjustmentAll), nil
}

// toBars converts a chart result. Yahoo quotes are split adjusted; with
// dividends requested every price is scaled by adjclose/close.
func toBars(r chartResult, dividends bool) []core.Bar {
	q := r.Indicators.Quote[0]
	var adjClose []*float64
	if dividends && len(r.Indicators.AdjClose) > 0 {
		adjClose = r.Indicators.AdjClose[0].AdjClose
	}

	n := min(len(r.Timestamp), len(q.Open), len(q.High), len(q.Low), len(q.Close))
	bars := make([]core.Bar, 0, n)
	for i := 0; i < n; i++ {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		factor := 1.0
		if i < len(adjClose) && adjClose[i] != nil && *q.Close[i] != 0 {
			factor = *adjClose[i] / *q.Close[i]
		}
		var vol float64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = float64(*q.Volume[i])
		}
		bars = append(bars, core.Bar{
			Time:   time.Unix(r.Timestamp[i], 0).UTC(),
			Open:   *q.Open[i] * factor,
			High:   *q.High[i] * factor,
			Low:    *q.Low[i] * factor,
			Close:  *q.Close[i] * factor,
			Volume: vol,
		})
	}
	return collector.SortBars(bars)
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type indicators struct {
	Quote    []quoteIndicator    `json:"quote"`
	AdjClose []adjCloseIndicator `json:"adjclose"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type adjCloseIndicator struct {
	AdjClose []*float64 `json:"adjclose"`
}
