// Package stats espone le metriche Prometheus di router e workflow.
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace è il namespace delle metriche
const DefaultNamespace = "arcanea"

// Metrics raccoglie i collector dell'orchestratore.
// Tutti i metodi accettano un receiver nil e in quel caso non fanno nulla.
type Metrics struct {
	attempts          *prometheus.CounterVec
	retries           *prometheus.CounterVec
	fallbacks         *prometheus.CounterVec
	generations       *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	tokens            *prometheus.CounterVec

	workflowRuns     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	phaseAgents      *prometheus.CounterVec
	workflowsRunning prometheus.Gauge
}

// New registra i collector su reg. Con reg nil usa un registry privato,
// così più istanze (es. nei test) non collidono.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "attempts_total",
				Help:      "Provider call attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "retries_total",
				Help:      "Retries after transient errors by provider",
			},
			[]string{"provider"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "fallbacks_total",
				Help:      "Fallbacks from one provider to the next in the chain",
			},
			[]string{"from", "to"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "generations_total",
				Help:      "Completed generate calls by final provider and status",
			},
			[]string{"provider", "status"},
		),
		generationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "generation_duration_seconds",
				Help:      "End-to-end generate latency including retries and fallbacks",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by provider and result",
			},
			[]string{"provider", "result"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "tokens_total",
				Help:      "Tokens processed by provider and direction",
			},
			[]string{"provider", "type"},
		),
		workflowRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Workflow runs by workflow and terminal status",
			},
			[]string{"workflow", "status"},
		),
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "duration_seconds",
				Help:      "Workflow run duration",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"workflow"},
		),
		phaseAgents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "phase_agents_total",
				Help:      "Agent outcomes inside workflow phases",
			},
			[]string{"workflow", "outcome"},
		),
		workflowsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "running",
				Help:      "Workflow runs currently in progress",
			},
		),
	}
}

// RecordAttempt registra un singolo tentativo verso un provider
func (m *Metrics) RecordAttempt(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.attempts.WithLabelValues(provider, outcome).Inc()
}

// RecordRetry registra un retry
func (m *Metrics) RecordRetry(provider string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(provider).Inc()
}

// RecordFallback registra il passaggio al provider successivo
func (m *Metrics) RecordFallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

// RecordGeneration registra l'esito finale di una generate
func (m *Metrics) RecordGeneration(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.generations.WithLabelValues(provider, status).Inc()
	m.generationLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordCache registra un lookup nel response cache
func (m *Metrics) RecordCache(provider string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(provider, result).Inc()
}

// RecordTokens registra i token di una generazione
func (m *Metrics) RecordTokens(provider string, prompt, completion int64) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.tokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.tokens.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// WorkflowStarted incrementa il gauge dei workflow in corso
func (m *Metrics) WorkflowStarted() {
	if m == nil {
		return
	}
	m.workflowsRunning.Inc()
}

// WorkflowFinished registra l'esito di un workflow
func (m *Metrics) WorkflowFinished(workflowID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.workflowsRunning.Dec()
	m.workflowRuns.WithLabelValues(workflowID, status).Inc()
	m.workflowDuration.WithLabelValues(workflowID).Observe(d.Seconds())
}

// RecordPhase registra gli esiti degli agenti di una fase
func (m *Metrics) RecordPhase(workflowID string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.phaseAgents.WithLabelValues(workflowID, "success").Add(float64(succeeded))
	m.phaseAgents.WithLabelValues(workflowID, "failed").Add(float64(failed))
}
