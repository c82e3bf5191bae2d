// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "veto"

// Recorder owns the service's Prometheus collectors. A nil *Recorder records nothing, so
// packages can take one without checking whether metrics are enabled.
type Recorder struct {
	reg *prometheus.Registry

	actions       *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	conflicts     prometheus.Counter
	remediations  *prometheus.CounterVec
	auditIssues   prometheus.Gauge
	auditWarnings prometheus.Gauge
	auditRuns     prometheus.Counter
}

// NewRecorder registers all collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg: reg,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_recorded_total",
			Help:      "Veto actions appended to a session log.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Veto commands rejected, by error kind.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_conflicts_total",
			Help:      "Compare-and-append attempts that lost a race.",
		}),
		remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remediations_total",
			Help:      "Sessions targeted by remediation, by outcome.",
		}, []string{"outcome"}),
		auditIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_issues",
			Help:      "Issues found by the most recent system audit.",
		}),
		auditWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_warnings",
			Help:      "Warnings found by the most recent system audit.",
		}),
		auditRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_runs_total",
			Help:      "System audits completed.",
		}),
	}
	reg.MustRegister(
		r.actions, r.rejections, r.conflicts, r.remediations,
		r.auditIssues, r.auditWarnings, r.auditRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Recorder) ActionRecorded(action string) {
	if r == nil {
		return
	}
	r.actions.WithLabelValues(action).Inc()
}

func (r *Recorder) ActionRejected(kind string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(kind).Inc()
}

func (r *Recorder) Conflict() {
	if r == nil {
		return
	}
	r.conflicts.Inc()
}

// Remediation counts one session by outcome ("cleaned" or "failed").
func (r *Recorder) Remediation(outcome string) {
	if r == nil {
		return
	}
	r.remediations.WithLabelValues(outcome).Inc()
}

// AuditCompleted records the size of the latest system audit.
func (r *Recorder) AuditCompleted(issues, warnings int) {
	if r == nil {
		return
	}
	r.auditRuns.Inc()
	r.auditIssues.Set(float64(issues))
	r.auditWarnings.Set(float64(warnings))
}
