package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	loopTicksTotal      *prometheus.CounterVec
	loopTickFailures    *prometheus.CounterVec
	remindersSentTotal  prometheus.Counter
	probeResultsTotal   *prometheus.CounterVec
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	observationFansOut  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the bot.
func RegisterMetrics() {
	registerOnce.Do(func() {
		loopTicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_ticks_total",
			Help: "Total loop ticks executed, per loop.",
		}, []string{"loop"})

		loopTickFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_tick_failures_total",
			Help: "Loop ticks that returned an error, per loop.",
		}, []string{"loop"})

		remindersSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Assignment reminder messages successfully delivered.",
		})

		probeResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_probe_results_total",
			Help: "Uptime probe observations recorded, per target and result.",
		}, []string{"target", "result"})

		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		observationFansOut = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uptime_feed_messages_total",
			Help: "Observations fanned out to live feed subscribers.",
		})

		prometheus.MustRegister(
			loopTicksTotal,
			loopTickFailures,
			remindersSentTotal,
			probeResultsTotal,
			apiRequestsTotal,
			apiLatencySeconds,
			observationFansOut,
		)
	})
}

// LoopTicks returns the per-loop tick counter.
func LoopTicks() *prometheus.CounterVec {
	RegisterMetrics()
	return loopTicksTotal
}

// LoopTickFailures returns the per-loop failure counter.
func LoopTickFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return loopTickFailures
}

// RemindersSent returns the delivered-reminder counter.
func RemindersSent() prometheus.Counter {
	RegisterMetrics()
	return remindersSentTotal
}

// ProbeResults returns the per-target probe result counter.
func ProbeResults() *prometheus.CounterVec {
	RegisterMetrics()
	return probeResultsTotal
}

// APIRequests returns the API request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency returns the API latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// FeedMessages returns the live-feed fan-out counter.
func FeedMessages() prometheus.Counter {
	RegisterMetrics()
	return observationFansOut
}
