package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
)

const (
	metricsNamespace = "reimburse"
	searchSubsystem  = "search"
)

// #region metrics
// Metrics are the search progress series, labelled by grid name.
type Metrics struct {
	// CandidatesEvaluated counts evaluated grid points.
	CandidatesEvaluated *prometheus.CounterVec

	// CandidatesRejected counts grid points whose spec failed to build.
	CandidatesRejected *prometheus.CounterVec

	// InvalidPredictions counts cases replaced by the minimum payout across all trials.
	InvalidPredictions *prometheus.CounterVec

	// Improvements counts new best trials.
	Improvements *prometheus.CounterVec

	BestExactMatches *prometheus.GaugeVec
	BestMeanAbsError *prometheus.GaugeVec
	BestScore        *prometheus.GaugeVec

	// BatchSeconds measures wall time per evaluated batch.
	BatchSeconds *prometheus.HistogramVec
}

// NewMetrics creates the search series and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	labels := []string{"grid"}
	return &Metrics{
		CandidatesEvaluated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "candidates_evaluated_total",
			Help: "Grid points evaluated against the full case store.",
		}, labels),
		CandidatesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "candidates_rejected_total",
			Help: "Grid points whose configuration could not be built.",
		}, labels),
		InvalidPredictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "invalid_predictions_total",
			Help: "Per-case predictions that failed and were replaced by the minimum payout.",
		}, labels),
		Improvements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "improvements_total",
			Help: "Times a trial replaced the best so far.",
		}, labels),
		BestExactMatches: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "best_exact_matches",
			Help: "Exact matches of the best trial.",
		}, labels),
		BestMeanAbsError: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "best_mean_abs_error",
			Help: "Mean absolute error of the best trial.",
		}, labels),
		BestScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name: "best_score",
			Help: "External score of the best trial; lower is better.",
		}, labels),
		BatchSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: searchSubsystem,
			Name:    "batch_seconds",
			Help:    "Wall time to evaluate one batch of grid points.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, labels),
	}
}

func (m *Metrics) observeTrial(grid string, r eval.EvalResult) {
	if m == nil {
		return
	}
	m.CandidatesEvaluated.WithLabelValues(grid).Inc()
	if n := len(r.Invalid); n > 0 {
		m.InvalidPredictions.WithLabelValues(grid).Add(float64(n))
	}
}

func (m *Metrics) observeBest(grid string, r eval.EvalResult) {
	if m == nil {
		return
	}
	m.Improvements.WithLabelValues(grid).Inc()
	m.BestExactMatches.WithLabelValues(grid).Set(float64(r.ExactMatches))
	m.BestMeanAbsError.WithLabelValues(grid).Set(r.MeanAbsError)
	m.BestScore.WithLabelValues(grid).Set(r.Score())
}

func (m *Metrics) observeRejected(grid string) {
	if m == nil {
		return
	}
	m.CandidatesRejected.WithLabelValues(grid).Inc()
}

func (m *Metrics) observeBatch(grid string, seconds float64) {
	if m == nil {
		return
	}
	m.BatchSeconds.WithLabelValues(grid).Observe(seconds)
}

// #endregion metrics
