package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_created_total",
			Help:      "Count of confirmed bookings.",
		},
	)

	bookingConflict = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_conflict_total",
			Help:      "Count of rejected bookings by conflict reason.",
		},
		[]string{"reason"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_cancelled_total",
			Help:      "Count of signups cancelled by visitors.",
		},
	)

	bookingRolledBack = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "booking_rolled_back_total",
			Help:      "Count of signup batches marked FAILED after losing a capacity race.",
		},
	)

	slotsMutated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "admin_slots_mutated_total",
			Help:      "Count of admin slot mutations by action.",
		},
		[]string{"action"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotbook",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingConflict, bookingCancelled,
			bookingRolledBack, slotsMutated, httpRequests,
		)
	})
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

func IncBookingConflict(reason string) {
	bookingConflict.WithLabelValues(reason).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncBookingRolledBack() {
	bookingRolledBack.Inc()
}

func IncSlotsMutated(action string) {
	slotsMutated.WithLabelValues(action).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
