package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for runs, steps and tool calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	diagrams     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_runs_total",
			Help: "Plan/execute runs by outcome",
		}, []string{"outcome"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_steps_total",
			Help: "Executed steps by outcome",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentinel_step_duration_seconds",
			Help:    "Duration of step executions",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_tool_calls_total",
			Help: "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_planner_fallbacks_total",
			Help: "Planner results replaced by the fallback task",
		}, []string{"reason"}),
		diagrams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_diagrams_total",
			Help: "Generated diagrams by kind and whether clean-up was applied",
		}, []string{"kind", "fixed"}),
	}
	reg.MustRegister(m.runs, m.steps, m.stepDuration, m.toolCalls, m.fallbacks, m.diagrams)
	return m
}

func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StepFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	m.stepDuration.Observe(d.Seconds())
}

func (m *Metrics) ToolCalled(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) PlannerFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) DiagramGenerated(kind string, fixed bool) {
	if m == nil {
		return
	}
	f := "false"
	if fixed {
		f = "true"
	}
	m.diagrams.WithLabelValues(kind, f).Inc()
}
