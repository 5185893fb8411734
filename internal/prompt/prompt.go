// Package prompt costruisce i prompt degli agenti.
//
// Lo stesso builder è usato sia dall'invocazione singola sia da ogni agente
// di una fase di workflow, così la forma del prompt non dipende dal percorso.
package prompt

import (
	"sort"
	"strconv"
	"strings"

	"github.com/biodoia/goarcanea/pkg/models"
)

// Build costruisce il prompt per un agente.
//
// Ordine: identità dell'agente, task, contesto (ogni coppia esattamente una
// volta, ordinata per chiave), direttiva finale. Output deterministico.
func Build(agent models.Agent, task string, context map[string]string) string {
	var b strings.Builder

	b.WriteString("You are ")
	b.WriteString(agent.Name)
	if agent.Court != "" {
		b.WriteString(", of the Court of ")
		b.WriteString(agent.Court)
	}
	b.WriteString(".\n")

	if agent.Specialty != "" {
		b.WriteString("Specialty: ")
		b.WriteString(agent.Specialty)
		b.WriteString("\n")
	}
	b.WriteString("Frequency: ")
	b.WriteString(FormatFrequency(agent.Frequency))
	b.WriteString("\n")
	if agent.Personality != "" {
		b.WriteString("Personality: ")
		b.WriteString(agent.Personality)
		b.WriteString("\n")
	}

	b.WriteString("\nTask:\n")
	b.WriteString(strings.TrimSpace(task))
	b.WriteString("\n")

	if len(context) > 0 {
		b.WriteString("\nContext:\n")
		for i, key := range sortedKeys(context) {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(key)
			b.WriteString(":\n")
			b.WriteString(indent(strings.TrimSpace(context[key])))
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRespond as ")
	b.WriteString(agent.Name)
	if agent.Specialty != "" {
		b.WriteString(", drawing on your specialty in ")
		b.WriteString(strings.ToLower(agent.Specialty))
	}
	b.WriteString(".")

	return b.String()
}

// DecorateTask aggiunge al task le opzioni valorizzate.
// Le opzioni vuote sono omesse, mai sostituite con un default.
func DecorateTask(task string, opts models.WorkflowOptions) string {
	if opts.IsZero() {
		return task
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(task))
	b.WriteString("\n")

	for _, opt := range []struct{ label, value string }{
		{"Theme", opts.Theme},
		{"Genre", opts.Genre},
		{"Tone", opts.Tone},
		{"Scope", opts.Scope},
	} {
		if v := strings.TrimSpace(opt.value); v != "" {
			b.WriteString("\n")
			b.WriteString(opt.label)
			b.WriteString(": ")
			b.WriteString(v)
		}
	}

	return b.String()
}

// FormatFrequency rende una frequenza come "528 Hz"
func FormatFrequency(hz float64) string {
	return strconv.FormatFloat(hz, 'f', -1, 64) + " Hz"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}
