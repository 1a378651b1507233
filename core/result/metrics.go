package result

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	positionWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "myschool",
		Name:      "position_writes_total",
		Help:      "Result rows written by position computations, by outcome.",
	}, []string{"outcome"})

	rankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "myschool",
		Name:      "rank_cohort_duration_seconds",
		Help:      "Time spent computing and writing back the positions of a cohort.",
		Buckets:   prometheus.DefBuckets,
	})
)
