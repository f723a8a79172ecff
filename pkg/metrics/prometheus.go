package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	batches    *prometheus.CounterVec
	symbols    *prometheus.CounterVec
	retries    *prometheus.CounterVec
	coverage   prometheus.Gauge
	candidates *prometheus.GaugeVec
	rejections *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	errors     *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_greeks_batches_total",
			Help: "Greeks collection batches by exit reason",
		}, []string{"result"}),
		symbols: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_greeks_symbols_total",
			Help: "Option symbols requested and collected",
		}, []string{"kind"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_greeks_retry_symbols_total",
			Help: "Symbols requested and recovered by the retry window",
		}, []string{"kind"}),
		coverage: f.NewGauge(prometheus.GaugeOpts{
			Name: "spreadscout_greeks_coverage_percent",
			Help: "Greeks coverage of the last collection",
		}),
		candidates: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spreadscout_candidates",
			Help: "Spread candidates per pipeline stage in the last run",
		}, []string{"stage"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_rejections_total",
			Help: "Candidate rejections by reason",
		}, []string{"reason"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_decisions_total",
			Help: "Ranked spreads by decision",
		}, []string{"decision"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadscout_errors_total",
			Help: "Errors by kind",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spreadscout_operation_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
}

func (r *Recorder) RecordBatch(result string, requested, collected int) {
	r.batches.WithLabelValues(result).Inc()
	r.symbols.WithLabelValues("requested").Add(float64(requested))
	r.symbols.WithLabelValues("collected").Add(float64(collected))
}

func (r *Recorder) RecordRetry(requested, collected int) {
	r.retries.WithLabelValues("requested").Add(float64(requested))
	r.retries.WithLabelValues("recovered").Add(float64(collected))
}

func (r *Recorder) RecordCoverage(pct float64) {
	r.coverage.Set(pct)
}

func (r *Recorder) RecordCandidates(stage string, n int) {
	r.candidates.WithLabelValues(stage).Set(float64(n))
}

func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordDecision(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
