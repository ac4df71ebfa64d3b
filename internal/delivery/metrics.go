package delivery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentd"

var (
	deliveryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_size",
			Help:      "Number of notification jobs waiting in the delivery queue",
		},
	)

	deliveriesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "sent_total",
			Help:      "Total delivery attempts by outcome",
		},
		[]string{"method", "status"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "send_duration_seconds",
			Help:      "Time to deliver a notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	deliveriesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_fetched_total",
			Help:      "Total jobs fetched from the delivery queue before send attempt",
		},
	)
)

// recordDeliverySent records a delivery attempt outcome.
func recordDeliverySent(method, status string) {
	deliveriesSent.WithLabelValues(method, status).Inc()
}

// recordDeliveryDuration records delivery duration.
func recordDeliveryDuration(method string, duration time.Duration) {
	deliveryDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// recordQueueProcessed records the number of jobs fetched from the queue.
func recordQueueProcessed(count int) {
	deliveriesProcessed.Add(float64(count))
}

// RecordQueueSize updates the delivery queue size gauge.
func RecordQueueSize(size int) {
	deliveryQueueSize.Set(float64(size))
}
