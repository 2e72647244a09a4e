package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "gridswitch"

	metricTargetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "dispatch_targets_total",
		Namespace: metricsNamespace,
		Help:      "The number of dispatched targets by result",
	}, []string{"result"})

	metricBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "dispatch_batch_duration_seconds",
		Namespace: metricsNamespace,
		Help:      "Time from fan-out to a final outcome for one command",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	metricInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "dispatch_inflight_workers",
		Namespace: metricsNamespace,
		Help:      "The number of device exchanges still running, including abandoned ones",
	})
)
