package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "chat_requests_total",
		Help:      "Total chat requests received.",
	})
	metricFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "chat_failures_total",
		Help:      "Chat requests that returned a failure response.",
	}, []string{"reason"})
	metricRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "relay",
		Name:      "chat_request_duration_seconds",
		Help:      "End-to-end chat request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	metricInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "chat_requests_in_flight",
		Help:      "Chat requests currently being served.",
	})
	metricStreamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "stream_events_total",
		Help:      "Stream events received from the flow, by kind.",
	}, []string{"kind"})
	metricCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "flow_completions_total",
		Help:      "Flow completion events, by completion reason.",
	}, []string{"reason"})
)

// ObserveStreamEvent feeds the per-kind event counter. Wired as the
// aggregator's event callback.
func ObserveStreamEvent(kind string) {
	metricStreamEvents.WithLabelValues(kind).Inc()
}
