package directory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "gridswitch"

	metricRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "directory_refresh_total",
		Namespace: metricsNamespace,
		Help:      "The number of directory refreshes by result",
	}, []string{"result"})

	metricEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "directory_entries",
		Namespace: metricsNamespace,
		Help:      "The number of identifiers in the current directory snapshot",
	})

	metricRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "directory_refresh_duration_seconds",
		Namespace: metricsNamespace,
		Help:      "Time taken to read the store and swap the snapshot",
		Buckets:   prometheus.DefBuckets,
	})
)
