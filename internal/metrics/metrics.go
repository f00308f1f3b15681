package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Process run outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeExit    = "nonzero_exit"
	OutcomeIO      = "io_error"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	inFlight        prometheus.Gauge
	processRuns     *prometheus.CounterVec
	processDuration prometheus.Histogram
	results         *prometheus.CounterVec
	cacheHits       prometheus.Counter

	active atomic.Int64
	total  atomic.Int64
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docclass_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "docclass_http_requests_in_flight",
			Help: "Classification requests currently being served.",
		}),
		processRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docclass_process_runs_total",
			Help: "Classification program runs by outcome.",
		}, []string{"outcome"}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docclass_process_duration_seconds",
			Help:    "Wall time of classification program runs.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160, 320},
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docclass_results_total",
			Help: "Per-image classification results by status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docclass_cache_hits_total",
			Help: "Results served from the result cache.",
		}),
	}
	m.Registry.MustRegister(
		m.requests, m.inFlight, m.processRuns, m.processDuration, m.results, m.cacheHits,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) IncActive() {
	if m == nil {
		return
	}
	m.active.Add(1)
	m.total.Add(1)
	m.inFlight.Inc()
}

func (m *Metrics) DecActive() {
	if m == nil {
		return
	}
	m.active.Add(-1)
	m.inFlight.Dec()
}

func (m *Metrics) Get() (total, active int64) {
	if m == nil {
		return 0, 0
	}
	return m.total.Load(), m.active.Load()
}

func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}

func (m *Metrics) ObserveProcess(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.processRuns.WithLabelValues(outcome).Inc()
	m.processDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveResult(success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.results.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
