package registry

import (
	"strings"

	"github.com/biodoia/goarcanea/pkg/models"
)

// Snapshot è una versione immutabile del catalogo
type Snapshot struct {
	version uint64
	agents  []models.Agent
	index   map[string]int
}

func emptySnapshot() *Snapshot {
	return &Snapshot{index: map[string]int{}}
}

func newSnapshot(version uint64, agents []models.Agent) *Snapshot {
	index := make(map[string]int, len(agents))
	for i, a := range agents {
		index[a.ID] = i
	}
	return &Snapshot{version: version, agents: agents, index: index}
}

// NewSnapshot costruisce uno snapshot fuori dal registry (test, embedding).
// Gli id duplicati mantengono la prima occorrenza.
func NewSnapshot(version uint64, agents ...models.Agent) *Snapshot {
	out := make([]models.Agent, 0, len(agents))
	seen := make(map[string]bool, len(agents))
	for _, a := range agents {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a.Clone())
	}
	return newSnapshot(version, out)
}

// Version restituisce il numero di versione (0 = mai caricato)
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Len restituisce il numero di agenti
func (s *Snapshot) Len() int {
	return len(s.agents)
}

// All restituisce una copia degli agenti nell'ordine della sorgente
func (s *Snapshot) All() []models.Agent {
	out := make([]models.Agent, len(s.agents))
	for i, a := range s.agents {
		out[i] = a.Clone()
	}
	return out
}

// Get cerca un agente per id
func (s *Snapshot) Get(id string) (models.Agent, bool) {
	i, ok := s.index[id]
	if !ok {
		return models.Agent{}, false
	}
	return s.agents[i].Clone(), true
}

// Has verifica la presenza di un id
func (s *Snapshot) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// ByCourt filtra per corte (case-insensitive)
func (s *Snapshot) ByCourt(court string) []models.Agent {
	return s.filter(func(a models.Agent) bool { return strings.EqualFold(a.Court, court) })
}

// ByElement filtra per elemento (case-insensitive)
func (s *Snapshot) ByElement(element string) []models.Agent {
	return s.filter(func(a models.Agent) bool { return strings.EqualFold(a.Element, element) })
}

// Courts restituisce le corti nell'ordine di prima apparizione
func (s *Snapshot) Courts() []string {
	var courts []string
	seen := map[string]bool{}
	for _, a := range s.agents {
		if !seen[a.Court] {
			seen[a.Court] = true
			courts = append(courts, a.Court)
		}
	}
	return courts
}

func (s *Snapshot) filter(keep func(models.Agent) bool) []models.Agent {
	var out []models.Agent
	for _, a := range s.agents {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	return out
}
