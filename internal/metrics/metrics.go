package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	runsTotal        *prometheus.CounterVec
	runsActive       prometheus.Gauge
	runDuration      prometheus.Histogram
	barsReplayed     prometheus.Counter
	barsSkipped      prometheus.Counter
	tradesClosed     *prometheus.CounterVec
	signalsSubmitted *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_runs_total",
			Help: "Total number of backtest runs by terminal status",
		},
		[]string{"status"},
	)
	r.runsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simcore_runs_active",
			Help: "Number of backtest runs currently executing",
		},
	)
	r.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simcore_run_duration_seconds",
			Help:    "Backtest run wall-clock duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.barsReplayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simcore_bars_replayed_total",
			Help: "Total number of bars fed through replay",
		},
	)
	r.barsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simcore_bars_skipped_total",
			Help: "Total number of malformed bars skipped during replay",
		},
	)
	r.tradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_trades_closed_total",
			Help: "Total number of simulated trades closed",
		},
		[]string{"reason"},
	)
	r.signalsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simcore_signals_total",
			Help: "Total number of signals submitted",
		},
		[]string{"status"},
	)

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runsActive)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.barsReplayed)
	reg.MustRegister(r.barsSkipped)
	reg.MustRegister(r.tradesClosed)
	reg.MustRegister(r.signalsSubmitted)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RunStarted marks a run as executing.
func (r *Registry) RunStarted() {
	r.runsActive.Inc()
}

// RunFinished records a run reaching a terminal status.
func (r *Registry) RunFinished(status string, duration float64) {
	r.runsActive.Dec()
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration)
}

// AddBarsReplayed adds to the replayed and skipped bar counters.
func (r *Registry) AddBarsReplayed(processed, skipped int) {
	r.barsReplayed.Add(float64(processed))
	r.barsSkipped.Add(float64(skipped))
}

// RecordTradeClosed records a closed trade by exit reason.
func (r *Registry) RecordTradeClosed(reason string) {
	r.tradesClosed.WithLabelValues(reason).Inc()
}

// RecordSignal records a signal submission outcome.
func (r *Registry) RecordSignal(status string) {
	r.signalsSubmitted.WithLabelValues(status).Inc()
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
