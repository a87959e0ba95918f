package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records analysis and scan metrics with Prometheus
type Recorder struct {
	analyses *prometheus.CounterVec
	errors   *prometheus.CounterVec
	scans    prometheus.Counter
	duration prometheus.Histogram
	score    *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondsignal_analyses_total",
				Help: "Completed bond analyses by overall signal",
			},
			[]string{"signal"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bondsignal_errors_total",
				Help: "Failed bond analyses by stage",
			},
			[]string{"stage"},
		),
		scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "bondsignal_scans_total",
			Help: "Completed scans",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bondsignal_analysis_duration_seconds",
			Help:    "Time to fetch and analyze one bond",
			Buckets: prometheus.DefBuckets,
		}),
		score: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bondsignal_composite_score",
				Help:    "Composite scores by side",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"side"},
		),
	}
}

// RecordAnalysis records a finished analysis
func (r *Recorder) RecordAnalysis(signal string, buy, sell float64, took time.Duration) {
	if r == nil {
		return
	}
	r.analyses.WithLabelValues(signal).Inc()
	r.score.WithLabelValues("buy").Observe(buy)
	r.score.WithLabelValues("sell").Observe(sell)
	r.duration.Observe(took.Seconds())
}

// RecordError records a failure at stage (fetch, analyze, timeout)
func (r *Recorder) RecordError(stage string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(stage).Inc()
}

// RecordScan records a completed scan
func (r *Recorder) RecordScan() {
	if r == nil {
		return
	}
	r.scans.Inc()
}
