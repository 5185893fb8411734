package workflow

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/biodoia/goarcanea/internal/registry"
	"github.com/biodoia/goarcanea/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/workflows.yaml
var embeddedCatalog []byte

// Aggregation è la policy che produce l'output finale di un workflow
type Aggregation string

const (
	// AggregationConcat unisce gli output dell'ultima fase in sezioni con intestazione
	AggregationConcat Aggregation = "concat"
	// AggregationSynthesis usa l'output dell'agente sintetizzatore
	AggregationSynthesis Aggregation = "synthesis"
)

// Definition è un workflow: una sequenza di fasi di agenti
type Definition struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	Aggregation Aggregation `yaml:"aggregation" json:"aggregation"`
	Synthesizer string      `yaml:"synthesizer,omitempty" json:"synthesizer,omitempty"`
	Phases      []Phase     `yaml:"phases" json:"phases"`
}

// Phase è un gruppo di agenti eseguiti in parallelo
type Phase struct {
	Name   string   `yaml:"name" json:"name"`
	Agents []string `yaml:"agents" json:"agents"`
}

// Summary descrive un workflow per il listing
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AgentCount  int    `json:"agent_count"`
	PhaseCount  int    `json:"phase_count"`
}

// Catalog è un insieme ordinato di definizioni
type Catalog struct {
	Workflows []Definition `yaml:"workflows"`
}

// LoadCatalog legge le definizioni da file; con path vuoto usa il catalogo incorporato
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(embeddedCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodifica e valida strutturalmente un catalogo YAML
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse workflow catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate verifica la coerenza strutturale del catalogo
func (c *Catalog) Validate() error {
	if len(c.Workflows) == 0 {
		return &models.ConfigError{Subject: "workflows", Reason: "catalog is empty"}
	}
	seen := make(map[string]bool, len(c.Workflows))
	for i := range c.Workflows {
		d := &c.Workflows[i]
		if d.Aggregation == "" {
			d.Aggregation = AggregationConcat
		}
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.ID] {
			return &models.ConfigError{Subject: "workflow " + d.ID, Reason: "duplicate id"}
		}
		seen[d.ID] = true
	}
	return nil
}

// Validate verifica la coerenza strutturale di una definizione
func (d Definition) Validate() error {
	invalid := func(reason string, args ...any) error {
		subject := "workflow " + d.ID
		if d.ID == "" {
			subject = "workflow"
		}
		return &models.ConfigError{Subject: subject, Reason: fmt.Sprintf(reason, args...)}
	}

	if d.ID == "" {
		return invalid("missing id")
	}
	if d.Name == "" {
		return invalid("missing name")
	}
	if len(d.Phases) == 0 {
		return invalid("no phases")
	}

	phases := make(map[string]bool, len(d.Phases))
	for i, p := range d.Phases {
		if p.Name == "" {
			return invalid("phase %d has no name", i+1)
		}
		if phases[p.Name] {
			return invalid("duplicate phase %q", p.Name)
		}
		phases[p.Name] = true

		if len(p.Agents) == 0 {
			return invalid("phase %q has no agents", p.Name)
		}
		agents := make(map[string]bool, len(p.Agents))
		for _, id := range p.Agents {
			if id == "" {
				return invalid("phase %q has an empty agent id", p.Name)
			}
			if agents[id] {
				return invalid("agent %q listed twice in phase %q", id, p.Name)
			}
			agents[id] = true
		}
	}

	switch d.Aggregation {
	case AggregationConcat, "":
	case AggregationSynthesis:
		if d.Synthesizer == "" {
			return invalid("synthesis aggregation requires a synthesizer")
		}
		last := d.Phases[len(d.Phases)-1]
		found := false
		for _, id := range last.Agents {
			if id == d.Synthesizer {
				found = true
				break
			}
		}
		if !found {
			return invalid("synthesizer %q is not in the last phase", d.Synthesizer)
		}
	default:
		return invalid("unknown aggregation %q", d.Aggregation)
	}

	return nil
}

// Bind verifica che tutti gli agenti referenziati esistano nello snapshot
func (d Definition) Bind(snap *registry.Snapshot) error {
	for _, p := range d.Phases {
		for _, id := range p.Agents {
			if !snap.Has(id) {
				return &models.ConfigError{
					Subject: "workflow " + d.ID,
					Reason:  fmt.Sprintf("phase %q references unknown agent %q", p.Name, id),
				}
			}
		}
	}
	return nil
}

// Summary restituisce il riepilogo della definizione
func (d Definition) Summary() Summary {
	distinct := make(map[string]struct{})
	for _, p := range d.Phases {
		for _, id := range p.Agents {
			distinct[id] = struct{}{}
		}
	}
	return Summary{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		AgentCount:  len(distinct),
		PhaseCount:  len(d.Phases),
	}
}
