package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProbeAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_probe_attempts_total",
		Help: "The total number of outbound reachability probe attempts",
	}, []string{"provider", "outcome"})

	ProbeExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_probe_exhausted_total",
		Help: "The total number of probes where every provider failed",
	}, []string{"probe"})

	EventsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_forwarded_total",
		Help: "The total number of diagnostic events forwarded to TikTok",
	}, []string{"event_type", "status"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_validation_failures_total",
		Help: "The total number of track requests rejected before any outbound call",
	}, []string{"reason"})

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_upstream_duration_seconds",
		Help:    "Time taken by outbound calls to upstream endpoints",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
