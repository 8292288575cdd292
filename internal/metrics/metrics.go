package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inferenceRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ethos_inference_runs_total",
		Help: "Owner-inference runs by outcome.",
	}, []string{"outcome"})

	inferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ethos_inference_duration_seconds",
		Help:    "End-to-end owner-inference latency.",
		Buckets: prometheus.DefBuckets,
	})

	candidatesReturned = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ethos_inference_candidates",
		Help:    "Ranked candidates returned per inference run.",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 25, 50},
	})

	gapPredictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ethos_gap_predictions_total",
		Help: "Gap-location predictions by outcome.",
	}, []string{"outcome"})
)

// ObserveInference records one owner-inference run.
func ObserveInference(d time.Duration, candidates int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	inferenceRuns.WithLabelValues(outcome).Inc()
	if err == nil {
		inferenceDuration.Observe(d.Seconds())
		candidatesReturned.Observe(float64(candidates))
	}
}

// ObserveGapPrediction records one gap-prediction run.
func ObserveGapPrediction(predicted bool, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !predicted:
		outcome = "no_signal"
	}
	gapPredictions.WithLabelValues(outcome).Inc()
}
