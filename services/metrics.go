package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ScoringRuns        prometheus.Counter
	ScoringRunDuration prometheus.Histogram
	PredictionsScored  prometheus.Counter
	LookupFailures     prometheus.Counter
	StoreFailures      prometheus.Counter
	Payouts            *prometheus.CounterVec
	PrizeCredited      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ScoringRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "contest", Name: "scoring_runs_total",
			Help: "Number of scoring runs started.",
		}),
		ScoringRunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contest", Name: "scoring_run_duration_seconds",
			Help:    "Duration of scoring runs.",
			Buckets: prometheus.DefBuckets,
		}),
		PredictionsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: "contest", Name: "predictions_scored_total",
			Help: "Predictions that received a final score.",
		}),
		LookupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "contest", Name: "results_lookup_failures_total",
			Help: "Failed results lookups (dates or id chunks).",
		}),
		StoreFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "contest", Name: "scoring_store_failures_total",
			Help: "Tournaments whose scoring could not be persisted.",
		}),
		Payouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contest", Name: "payouts_total",
			Help: "Payout runs by outcome.",
		}, []string{"outcome"}),
		PrizeCredited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "contest", Name: "prize_credited_total",
			Help: "Total prize money credited to users.",
		}),
	}
}

func (m *Metrics) observeScoring(seconds float64, scored, lookupFailures, storeFailures int) {
	if m == nil {
		return
	}
	m.ScoringRuns.Inc()
	m.ScoringRunDuration.Observe(seconds)
	m.PredictionsScored.Add(float64(scored))
	m.LookupFailures.Add(float64(lookupFailures))
	m.StoreFailures.Add(float64(storeFailures))
}

func (m *Metrics) observePayout(result *PayoutResult) {
	if m == nil || result == nil {
		return
	}
	m.Payouts.WithLabelValues(string(result.Outcome)).Inc()
	m.PrizeCredited.Add(result.Total.InexactFloat64())
}
