package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Router(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.RecordAttempt("claude", errors.New("boom"))
	m.RecordAttempt("claude", nil)
	m.RecordRetry("claude")
	m.RecordFallback("claude", "echo")
	m.RecordGeneration("echo", nil, 250*time.Millisecond)
	m.RecordCache("echo", true)
	m.RecordTokens("echo", 10, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("claude", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("claude", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("claude")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("claude", "echo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("echo", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("echo", "hit")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.tokens.WithLabelValues("echo", "prompt")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.generationLatency))
}

func TestMetrics_Workflow(t *testing.T) {
	m := New(nil, "")

	m.WorkflowStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowsRunning))

	m.RecordPhase("spell-crafting", 3, 1)
	m.WorkflowFinished("spell-crafting", "completed", time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.workflowsRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowRuns.WithLabelValues("spell-crafting", "completed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.phaseAgents.WithLabelValues("spell-crafting", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phaseAgents.WithLabelValues("spell-crafting", "failed")))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAttempt("p", nil)
		m.RecordRetry("p")
		m.RecordFallback("a", "b")
		m.RecordGeneration("p", nil, 0)
		m.RecordCache("p", false)
		m.RecordTokens("p", 1, 1)
		m.WorkflowStarted()
		m.WorkflowFinished("w", "completed", 0)
		m.RecordPhase("w", 1, 0)
	})
}

func TestNew_TwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil, "")
		New(nil, "")
	})
}
