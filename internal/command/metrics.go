package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsNamespace = "gridswitch"

	metricMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "command_messages_total",
		Namespace: metricsNamespace,
		Help:      "The number of command messages handled by result",
	}, []string{"result"})

	metricResolvedTargets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:      "command_resolved_targets",
		Namespace: metricsNamespace,
		Help:      "The number of addresses a command resolved to",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	metricResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "command_responses_total",
		Namespace: metricsNamespace,
		Help:      "The number of response messages published by result",
	}, []string{"result"})
)
