package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the analysis pipeline: whole-run outcomes plus
// per-unit retrieval and judgment behavior.
type WorkerMetrics struct {
	registry *prometheus.Registry

	reviewTotal     *prometheus.CounterVec
	reviewDuration  *prometheus.HistogramVec
	reviewInFlight  prometheus.Gauge
	unitJudgments   *prometheus.CounterVec
	retrievalHits   *prometheus.CounterVec
	issuesPerReview *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reviewTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ca",
			Subsystem: "worker",
			Name:      "submission_review_total",
			Help:      "Total reviewed submissions by status.",
		},
		[]string{"service", "status"},
	)
	reviewDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ca",
			Subsystem: "worker",
			Name:      "submission_review_duration_seconds",
			Help:      "Submission review duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	reviewInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ca",
			Subsystem: "worker",
			Name:      "submission_review_in_flight",
			Help:      "Number of in-flight submission reviews.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	unitJudgments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ca",
			Subsystem: "analyzer",
			Name:      "unit_judgments_total",
			Help:      "Per-unit judgment outcomes: compliant, flagged, downgraded, skipped.",
		},
		[]string{"service", "outcome"},
	)
	retrievalHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ca",
			Subsystem: "analyzer",
			Name:      "retrieval_total",
			Help:      "Reference index retrievals by result: hit, empty, below_threshold, timeout.",
		},
		[]string{"service", "result"},
	)
	issuesPerReview := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ca",
			Subsystem: "worker",
			Name:      "issues_per_review",
			Help:      "Distribution of issues found per reviewed submission.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)

	registry.MustRegister(reviewTotal, reviewDuration, reviewInFlight, unitJudgments, retrievalHits, issuesPerReview)

	return &WorkerMetrics{
		registry:        registry,
		reviewTotal:     reviewTotal,
		reviewDuration:  reviewDuration,
		reviewInFlight:  reviewInFlight,
		unitJudgments:   unitJudgments,
		retrievalHits:   retrievalHits,
		issuesPerReview: issuesPerReview,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReview() {
	m.reviewInFlight.Inc()
}

func (m *WorkerMetrics) FinishReview(service string, duration time.Duration, err error) {
	m.reviewInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.reviewTotal.WithLabelValues(service, status).Inc()
	m.reviewDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveUnitJudgment(service, outcome string) {
	m.unitJudgments.WithLabelValues(service, outcome).Inc()
}

func (m *WorkerMetrics) ObserveRetrieval(service, result string) {
	m.retrievalHits.WithLabelValues(service, result).Inc()
}

func (m *WorkerMetrics) ObserveIssueCount(service string, count int) {
	m.issuesPerReview.WithLabelValues(service).Observe(float64(count))
}
