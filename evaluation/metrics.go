package evaluation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// foldTotal counts finished folds by strategy and status
	foldTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imbalcv_folds_total",
		Help: "Total fold executions by strategy and status",
	}, []string{"strategy", "status"})

	// foldFailures counts fold and candidate failures by class
	foldFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imbalcv_fold_failures_total",
		Help: "Total fold failures by strategy and failure class",
	}, []string{"strategy", "class"})

	foldDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imbalcv_fold_duration_seconds",
		Help:    "Fold execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"strategy"})

	planCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imbalcv_plan_cache_total",
		Help: "Fold plan lookups by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imbalcv_run_duration_seconds",
		Help:    "Resampling run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
)

func observeFold(r FoldResult) {
	foldTotal.WithLabelValues(r.Strategy, string(r.Status)).Inc()
	foldDuration.WithLabelValues(r.Strategy).Observe(r.Duration.Seconds())
	if r.Class != FailureNone {
		foldFailures.WithLabelValues(r.Strategy, string(r.Class)).Inc()
	}
}

func observePlan(hit bool) {
	if hit {
		planCache.WithLabelValues("hit").Inc()
		return
	}
	planCache.WithLabelValues("miss").Inc()
}
