// Package metrics provides Prometheus metrics definitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "incidentd"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// DBPoolConnections tracks journal database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	// OpenIncidents tracks non-resolved incidents by severity.
	OpenIncidents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "open_incidents",
			Help:      "Number of open incidents by severity",
		},
		[]string{"severity"},
	)

	// EscalationQueueDepth tracks the size of the derived escalation queue.
	EscalationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "escalation_queue_depth",
			Help:      "Number of incidents awaiting action in the escalation queue",
		},
	)

	// SLAComplianceMin tracks the worst SLA compliance score among open
	// incidents per severity.
	SLAComplianceMin = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "sla_compliance_min",
			Help:      "Minimum SLA compliance score among open incidents by severity",
		},
		[]string{"severity"},
	)

	// EventsApplied counts accepted mutation events by type.
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_applied_total",
			Help:      "Total accepted events by type",
		},
		[]string{"type"},
	)

	// EventsRejected counts rejected mutation events by type.
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_rejected_total",
			Help:      "Total rejected events by type",
		},
		[]string{"type"},
	)
)
