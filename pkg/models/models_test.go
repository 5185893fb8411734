package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError_Is(t *testing.T) {
	err := fmt.Errorf("lookup: %w", &NotFoundError{Kind: NotFoundAgent, ID: "ghost"})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "lookup: agent not found: ghost", err.Error())

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, NotFoundAgent, nf.Kind)
}

func TestGenerationError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &GenerationError{AgentID: "flow", Providers: []string{"a", "b"}, Attempts: 4, Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "providers: a,b")
}

func TestPhaseFailedError_Unwrap(t *testing.T) {
	err := &PhaseFailedError{WorkflowID: "wf", Phase: "draft", Index: 0, Failures: map[string]error{"a": errors.New("x")}}

	assert.ErrorIs(t, err, ErrAllAgentsFailed)
	assert.Contains(t, err.Error(), "phase 1 (draft)")
}

func TestNewInvocationResult_SnapshotsAgent(t *testing.T) {
	agent := Agent{ID: "flow", Name: "Flow", Court: "Leyla", Specialty: "Narrative", Frequency: 396}

	res := NewInvocationResult(agent, "task", "response", "mock", "m1", 1500*time.Millisecond)
	agent.Name = "Renamed"

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "Flow", res.AgentName)
	assert.Equal(t, 396.0, res.Frequency)

	rec := res.Record()
	assert.Equal(t, res.ID, rec.ID)
	assert.Equal(t, int64(1500), rec.DurationMs)
}

func TestPromptRecord_Tags(t *testing.T) {
	p := &PromptRecord{Name: "n"}
	require.NoError(t, p.SetTags([]string{"fire", "draft"}))
	assert.Equal(t, []string{"fire", "draft"}, p.TagList())

	require.NoError(t, p.SetTags(nil))
	assert.Empty(t, p.TagList())
}

func TestAgent_CloneAndCapabilities(t *testing.T) {
	a := Agent{ID: "x", Capabilities: []string{"Narrative"}}
	c := a.Clone()
	c.Capabilities[0] = "changed"

	assert.True(t, a.HasCapability("narrative"))
	assert.False(t, a.HasCapability("changed"))
}

func TestWorkflowOptions_IsZero(t *testing.T) {
	assert.True(t, WorkflowOptions{}.IsZero())
	assert.False(t, WorkflowOptions{Tone: "dark"}.IsZero())
}
