// Package metrics registers the Prometheus counters for the audit workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditsStarted    prometheus.Counter
	AuditsFinalized  prometheus.Counter
	SectionsRecorded prometheus.Counter
	ReportsRendered  prometheus.Counter
	RenderFailures   prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTesting registers on a private registry so parallel tests do not
// collide on duplicate registration.
func NewForTesting() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuditsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "routeaudit_audits_started_total",
			Help: "Total number of audits started.",
		}),
		AuditsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "routeaudit_audits_finalized_total",
			Help: "Total number of audits finalized.",
		}),
		SectionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "routeaudit_sections_recorded_total",
			Help: "Total number of section entries recorded.",
		}),
		ReportsRendered: factory.NewCounter(prometheus.CounterOpts{
			Name: "routeaudit_reports_rendered_total",
			Help: "Total number of PDF reports rendered.",
		}),
		RenderFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "routeaudit_render_failures_total",
			Help: "Total number of report rendering failures.",
		}),
	}
}
