// Package metrics exposes trader and HTTP metrics for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "predator"

type Registry struct {
	*prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	symbolErrors  *prometheus.CounterVec
	scores        *prometheus.GaugeVec
	intents       *prometheus.CounterVec
	orders        *prometheus.CounterVec
	openPositions prometheus.Gauge
	equity        prometheus.Gauge
	watchlistSize prometheus.Gauge
	barsFetched   *prometheus.CounterVec
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently in flight",
		}),

		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Polling cycles by outcome",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Polling cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		symbolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbol_errors_total",
			Help:      "Per-symbol evaluation failures by stage",
		}, []string{"stage"}),
		scores: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Latest composite score per symbol",
		}, []string{"symbol"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Trade intents produced by the decision policy",
		}, []string{"side"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Execution outcomes by side",
		}, []string{"side", "outcome"}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Positions held after the last resync",
		}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "account_equity",
			Help:      "Account equity reported by the broker",
		}),
		watchlistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watchlist_symbols",
			Help:      "Number of symbols evaluated each cycle",
		}),
		barsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_fetched_total",
			Help:      "Bars received from the data provider",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		r.httpRequestsTotal, r.httpRequestDuration, r.httpRequestsInFlight,
		r.cycles, r.cycleDuration, r.symbolErrors, r.scores, r.intents, r.orders,
		r.openPositions, r.equity, r.watchlistSize, r.barsFetched,
	)
	return r
}

func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func (r *Registry) InFlightInc() { r.httpRequestsInFlight.Inc() }
func (r *Registry) InFlightDec() { r.httpRequestsInFlight.Dec() }

// RecordCycle records a finished polling cycle; status is "ok" or "error".
func (r *Registry) RecordCycle(status string, duration float64) {
	r.cycles.WithLabelValues(status).Inc()
	r.cycleDuration.Observe(duration)
}

func (r *Registry) RecordSymbolError(stage string) {
	r.symbolErrors.WithLabelValues(stage).Inc()
}

func (r *Registry) SetScore(symbol string, score int) {
	r.scores.WithLabelValues(symbol).Set(float64(score))
}

func (r *Registry) RecordIntent(side string) {
	r.intents.WithLabelValues(side).Inc()
}

// RecordOrder counts an execution outcome: submitted, skipped or failed.
func (r *Registry) RecordOrder(side, outcome string) {
	r.orders.WithLabelValues(side, outcome).Inc()
}

func (r *Registry) SetOpenPositions(n int) { r.openPositions.Set(float64(n)) }
func (r *Registry) SetEquity(v float64)    { r.equity.Set(v) }
func (r *Registry) SetWatchlistSize(n int) { r.watchlistSize.Set(float64(n)) }

func (r *Registry) AddBarsFetched(provider string, n int) {
	r.barsFetched.WithLabelValues(provider).Add(float64(n))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
