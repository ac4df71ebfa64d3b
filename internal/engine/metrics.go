package engine

import (
	"github.com/bracketops/incidentd/internal/domain"
	"github.com/bracketops/incidentd/internal/pkg/metrics"
)

var allSeverities = []domain.Severity{
	domain.SeverityLow,
	domain.SeverityMedium,
	domain.SeverityHigh,
	domain.SeverityCritical,
}

// RecordStats pushes registry-level gauges to Prometheus. Called by the
// periodic refresher; read endpoints always compute fresh values.
func RecordStats(stats Stats) {
	for _, severity := range allSeverities {
		metrics.OpenIncidents.WithLabelValues(string(severity)).Set(float64(stats.OpenBySeverity[severity]))

		score, ok := stats.MinSLA[severity]
		if !ok {
			// No open incidents at this severity means nothing is at risk.
			score = 100
		}
		metrics.SLAComplianceMin.WithLabelValues(string(severity)).Set(score)
	}
	metrics.EscalationQueueDepth.Set(float64(stats.QueueDepth))
}

// RecordEventApplied counts an accepted event.
func RecordEventApplied(t domain.EventType) {
	metrics.EventsApplied.WithLabelValues(string(t)).Inc()
}

// RecordEventRejected counts a rejected event.
func RecordEventRejected(t domain.EventType) {
	metrics.EventsRejected.WithLabelValues(string(t)).Inc()
}
