// Package metrics exposes Prometheus metrics for the decision layer.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors for sessions and decisions.
type Metrics struct {
	// SessionsStartedTotal counts sessions by kind ("enrollment"/"verification").
	SessionsStartedTotal *prometheus.CounterVec
	// DecisionsTotal counts final verification decisions by outcome.
	DecisionsTotal *prometheus.CounterVec
	// CascadeRejectionsTotal counts cascade rejections by stage.
	CascadeRejectionsTotal *prometheus.CounterVec
	// ActiveSessions tracks in-flight sessions by kind.
	ActiveSessions *prometheus.GaugeVec
}

// New creates and registers the decision-layer metrics. Registration runs
// once globally so repeated construction cannot panic on duplicate
// collectors.
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsStartedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicegate_sessions_started_total",
					Help: "Total number of sessions started",
				},
				[]string{"kind"},
			),
			DecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicegate_decisions_total",
					Help: "Total number of final verification decisions",
				},
				[]string{"decision"},
			),
			CascadeRejectionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "voicegate_cascade_rejections_total",
					Help: "Total number of cascade rejections by stage",
				},
				[]string{"stage"},
			),
			ActiveSessions: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "voicegate_active_sessions",
					Help: "Current number of in-flight sessions",
				},
				[]string{"kind"},
			),
		}
	})
	return globalMetrics
}

// RecordSessionStart counts a new session of the given kind.
func (m *Metrics) RecordSessionStart(kind string) {
	m.SessionsStartedTotal.WithLabelValues(kind).Inc()
}

// RecordDecision counts a final verification decision.
func (m *Metrics) RecordDecision(decision string) {
	m.DecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordCascadeRejection counts a rejection attributed to a cascade stage.
func (m *Metrics) RecordCascadeRejection(stage int) {
	m.CascadeRejectionsTotal.WithLabelValues(strconv.Itoa(stage)).Inc()
}

// SetActiveSessions updates the in-flight session gauge for a kind.
func (m *Metrics) SetActiveSessions(kind string, n int) {
	m.ActiveSessions.WithLabelValues(kind).Set(float64(n))
}
