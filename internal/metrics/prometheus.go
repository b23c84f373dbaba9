package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollTicksTotal counts status-fetch ticks by job kind.
	PollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradewatch_poll_ticks_total",
			Help: "Total number of poll ticks issued against the grading API",
		},
		[]string{"kind"},
	)

	// PollErrorsTotal counts transient fetch failures swallowed by the poller.
	PollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradewatch_poll_errors_total",
			Help: "Total number of transient poll failures",
		},
		[]string{"kind"},
	)

	// PollsActive tracks the number of currently running poll loops.
	PollsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradewatch_polls_active",
			Help: "Number of currently active poll loops",
		},
	)

	// FetchDuration tracks grading API round-trip time per operation.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gradewatch_fetch_duration_seconds",
			Help:    "Duration of grading API requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"operation"},
	)

	// WatchesActive tracks the number of audio resources being watched.
	WatchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradewatch_watches_active",
			Help: "Number of currently watched audio resources",
		},
	)

	// EventsPublishedTotal counts status-change events published to the broker.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradewatch_events_published_total",
			Help: "Total number of status-change events published",
		},
		[]string{"kind"},
	)
)
