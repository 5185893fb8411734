package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/stretchr/testify/assert"
)

var flow = models.Agent{
	ID:        "flow",
	Name:      "Flow",
	Court:     "Leyla",
	Specialty: "Narrative stream and continuity",
	Frequency: 396,
}

func TestBuild_Order(t *testing.T) {
	p := Build(flow, "Write the opening scene", map[string]string{"draft/Ignition": "a spark"})

	identity := strings.Index(p, "You are Flow, of the Court of Leyla.")
	specialty := strings.Index(p, "Specialty: Narrative stream and continuity")
	freq := strings.Index(p, "Frequency: 396 Hz")
	task := strings.Index(p, "Write the opening scene")
	ctx := strings.Index(p, "draft/Ignition")
	closing := strings.Index(p, "Respond as Flow")

	for _, idx := range []int{identity, specialty, freq, task, ctx, closing} {
		assert.GreaterOrEqual(t, idx, 0)
	}
	assert.Less(t, identity, specialty)
	assert.Less(t, freq, task)
	assert.Less(t, task, ctx)
	assert.Less(t, ctx, closing)
	assert.True(t, strings.HasSuffix(p, "drawing on your specialty in narrative stream and continuity."))
}

func TestBuild_Deterministic(t *testing.T) {
	ctx := map[string]string{}
	for i := 0; i < 20; i++ {
		ctx[fmt.Sprintf("phase/agent-%02d", i)] = fmt.Sprintf("output %d", i)
	}

	first := Build(flow, "task", ctx)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Build(flow, "task", ctx))
	}
}

func TestBuild_EveryContextPairExactlyOnce(t *testing.T) {
	ctx := map[string]string{
		"research/Depth":     "deep currents",
		"research/Structure": "stone bones",
		"draft/Flow":         "a river of words",
	}

	p := Build(flow, "task", ctx)

	for k, v := range ctx {
		assert.Equal(t, 1, strings.Count(p, k+":"), k)
		assert.Equal(t, 1, strings.Count(p, v), v)
	}
	assert.Less(t, strings.Index(p, "draft/Flow"), strings.Index(p, "research/Depth"))
}

func TestBuild_NoContextSection(t *testing.T) {
	assert.NotContains(t, Build(flow, "task", nil), "Context:")
	assert.NotContains(t, Build(flow, "task", map[string]string{}), "Context:")
}

func TestBuild_MultilineContextIsIndented(t *testing.T) {
	p := Build(flow, "task", map[string]string{"k": "line one\nline two"})
	assert.Contains(t, p, "1. k:\n   line one\n   line two")
}

func TestDecorateTask(t *testing.T) {
	tests := []struct {
		name string
		opts models.WorkflowOptions
		want string
	}{
		{"no options", models.WorkflowOptions{}, "A hero"},
		{"tone only", models.WorkflowOptions{Tone: "grim"}, "A hero\n\nTone: grim"},
		{
			"all options",
			models.WorkflowOptions{Theme: "loss", Genre: "fantasy", Tone: "grim", Scope: "short"},
			"A hero\n\nTheme: loss\nGenre: fantasy\nTone: grim\nScope: short",
		},
		{"blank values omitted", models.WorkflowOptions{Theme: "  ", Genre: "noir"}, "A hero\n\nGenre: noir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecorateTask("A hero", tt.opts))
		})
	}
}

func TestFormatFrequency(t *testing.T) {
	assert.Equal(t, "528 Hz", FormatFrequency(528))
	assert.Equal(t, "432.5 Hz", FormatFrequency(432.5))
}
