package yahoo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/collector"
	"github.com/newthinker/predator/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartJSON = `{"chart":{"result":[{"meta":{"symbol":"AAPL","currency":"USD"},
"timestamp":[1704207600,1704211200,1704214800],
"indicators":{"quote":[{"open":[100,101,null],"high":[102,103,null],"low":[99,100,null],"close":[101,102,null],"volume":[1000,2000,null]}],
"adjclose":[{"adjclose":[50.5,51,null]}]}}],"error":null}}`

const notFoundJSON = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

func newServer(t *testing.T) (*httptest.Server, *[]string) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/AAPL"), strings.HasSuffix(r.URL.Path, "/BRK-B"):
			_, _ = w.Write([]byte(chartJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(notFoundJSON))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestYahoo_ImplementsBarProvider(t *testing.T) {
	var _ collector.BarProvider = (*Yahoo)(nil)
	assert.Equal(t, "yahoo", New().Name())
}

func TestYahoo_GetBars(t *testing.T) {
	srv, paths := newServer(t)
	y := New(WithBaseURL(srv.URL))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := y.GetBars(context.Background(), collector.Request{
		Symbols:    []string{"AAPL", "ZZZZ"},
		Timeframe:  core.Timeframe1H,
		Start:      start,
		End:        start.Add(72 * time.Hour),
		Adjustment: core.AdjustmentSplits,
	})
	require.NoError(t, err)

	require.Contains(t, got, "AAPL")
	assert.NotContains(t, got, "ZZZZ")

	s := got["AAPL"]
	assert.Equal(t, core.Timeframe1H, s.Timeframe)
	require.Len(t, s.Bars, 2) // null row dropped
	assert.Equal(t, time.Unix(1704207600, 0).UTC(), s.Bars[0].Time)
	assert.Equal(t, core.Bar{Time: time.Unix(1704211200, 0).UTC(), Open: 101, High: 103, Low: 100, Close: 102, Volume: 2000}, s.Bars[1])

	require.NotEmpty(t, *paths)
	assert.Contains(t, (*paths)[0], "interval=1h")
	assert.Contains(t, (*paths)[0], "period1=1704067200")
}

func TestYahoo_GetBars_DividendAdjusted(t *testing.T) {
	srv, _ := newServer(t)
	y := New(WithBaseURL(srv.URL))

	got, err := y.GetBars(context.Background(), collector.Request{
		Symbols:    []string{"AAPL"},
		Timeframe:  core.Timeframe1D,
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Adjustment: core.AdjustmentAll,
	})
	require.NoError(t, err)

	b := got["AAPL"].Bars[0]
	assert.InDelta(t, 50.5, b.Close, 1e-9)
	assert.InDelta(t, 50.0, b.Open, 1e-9)
	assert.InDelta(t, 51.0, b.High, 1e-9)
}

func TestYahoo_GetBars_AllFailed(t *testing.T) {
	srv, _ := newServer(t)
	y := New(WithBaseURL(srv.URL))

	_, err := y.GetBars(context.Background(), collector.Request{
		Symbols:   []string{"ZZZZ"},
		Timeframe: core.Timeframe1H,
		Start:     time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, err, core.ErrDataFetchFailure)
	assert.ErrorContains(t, err, "delisted")
}

func TestYahoo_GetBars_InvalidRequest(t *testing.T) {
	_, err := New().GetBars(context.Background(), collector.Request{Timeframe: core.Timeframe1H})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	y := New()
	assert.Equal(t, "AAPL", y.toYahooSymbol("AAPL"))
	assert.Equal(t, "BRK-B", y.toYahooSymbol("BRK.B"))
	assert.Equal(t, "0700.HK", y.toYahooSymbol("0700.HK"))
}

func TestYahoo_ToYahooInterval(t *testing.T) {
	y := New()
	assert.Equal(t, "1h", y.toYahooInterval(core.Timeframe1H))
	assert.Equal(t, "1h", y.toYahooInterval(core.Timeframe4H))
	assert.Equal(t, "1d", y.toYahooInterval(core.Timeframe1D))
}

func TestValidateSymbol(t *testing.T) {
	assert.NoError(t, validateSymbol("NVDA"))
	assert.NoError(t, validateSymbol("BRK.B"))
	assert.Error(t, validateSymbol(""))
	assert.Error(t, validateSymbol("NV DA"))
}
