// Package observability holds the service's prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fittrack"

// Catalog lookup outcomes.
const (
	LookupCacheHit    = "hit"
	LookupFetched     = "fetched"
	LookupUnavailable = "unavailable"
	LookupNotFound    = "not_found"
)

var (
	catalogLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "catalog",
		Name:      "lookups_total",
		Help:      "Exercise lookups by outcome.",
	}, []string{"outcome"})
	notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "published_total",
		Help:      "Notification events handed to the message bus, by event and result.",
	}, []string{"event", "result"})
	notificationsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "delivered_total",
		Help:      "Notification frames queued for websocket subscribers.",
	})
	notificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "dropped_total",
		Help:      "Notification frames dropped because a subscriber buffer was full.",
	})
	subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "subscribers",
		Help:      "Currently connected websocket subscribers.",
	})
	completionsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workouts",
		Name:      "completions_total",
		Help:      "Workout completions recorded.",
	})
)

func init() {
	prometheus.MustRegister(
		catalogLookups,
		notificationsPublished,
		notificationsDelivered,
		notificationsDropped,
		subscribers,
		completionsRecorded,
	)
}

// RecordLookup counts a catalog lookup outcome.
func RecordLookup(outcome string) {
	catalogLookups.WithLabelValues(outcome).Inc()
}

// RecordPublish counts a publish attempt.
func RecordPublish(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	notificationsPublished.WithLabelValues(event, result).Inc()
}

// RecordDelivered counts a frame queued for a subscriber.
func RecordDelivered() {
	notificationsDelivered.Inc()
}

// RecordDropped counts a frame dropped for a slow subscriber.
func RecordDropped() {
	notificationsDropped.Inc()
}

// SetSubscribers reports the number of connected subscribers.
func SetSubscribers(n int) {
	subscribers.Set(float64(n))
}

// RecordCompletion counts a recorded workout completion.
func RecordCompletion() {
	completionsRecorded.Inc()
}
