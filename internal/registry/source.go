package registry

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/biodoia/goarcanea/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/agents.yaml
var embeddedCatalog []byte

// RawAgent è una voce del catalogo prima della validazione.
// Frequency resta testuale ("528" o "528Hz") e viene interpretata al caricamento.
type RawAgent struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Court        string   `yaml:"court"`
	Specialty    string   `yaml:"specialty"`
	Frequency    string   `yaml:"frequency"`
	Element      string   `yaml:"element"`
	CourtType    string   `yaml:"court_type"`
	Personality  string   `yaml:"personality"`
	Capabilities []string `yaml:"capabilities"`

	// Invalid è valorizzato quando la voce non è decodificabile
	Invalid string `yaml:"-"`
}

// Source fornisce le voci grezze del catalogo
type Source interface {
	Name() string
	Load(ctx context.Context) ([]RawAgent, error)
}

type catalogFile struct {
	Agents []yaml.Node `yaml:"agents"`
}

// parseCatalog decodifica le voci una per una: una voce malformata viene
// marcata Invalid e scartata in validazione, solo un documento illeggibile
// è fatale.
func parseCatalog(data []byte) ([]RawAgent, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("malformed catalog: %w", err)
	}

	out := make([]RawAgent, 0, len(file.Agents))
	for i := range file.Agents {
		var entry RawAgent
		if err := file.Agents[i].Decode(&entry); err != nil {
			entry = RawAgent{Invalid: fmt.Sprintf("malformed entry at line %d: %s", file.Agents[i].Line, decodeReason(err))}
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeReason(err error) string {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		return strings.Join(typeErr.Errors, "; ")
	}
	return err.Error()
}

// YAMLSource legge il catalogo da un file YAML
type YAMLSource struct {
	Path string
}

// Name implementa Source
func (s YAMLSource) Name() string {
	return s.Path
}

// Load implementa Source
func (s YAMLSource) Load(ctx context.Context) ([]RawAgent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return parseCatalog(data)
}

// EmbeddedSource restituisce il catalogo incorporato nel binario
type EmbeddedSource struct{}

// Name implementa Source
func (EmbeddedSource) Name() string {
	return "embedded"
}

// Load implementa Source
func (EmbeddedSource) Load(ctx context.Context) ([]RawAgent, error) {
	return parseCatalog(embeddedCatalog)
}

// StaticSource espone un insieme di voci in memoria
type StaticSource struct {
	Entries []RawAgent
}

// NewStaticSource costruisce una sorgente a partire da agenti già tipizzati
func NewStaticSource(agents ...models.Agent) *StaticSource {
	entries := make([]RawAgent, 0, len(agents))
	for _, a := range agents {
		entries = append(entries, RawAgent{
			ID:           a.ID,
			Name:         a.Name,
			Court:        a.Court,
			Specialty:    a.Specialty,
			Frequency:    strconv.FormatFloat(a.Frequency, 'f', -1, 64),
			Element:      a.Element,
			CourtType:    string(a.CourtType),
			Personality:  a.Personality,
			Capabilities: a.Capabilities,
		})
	}
	return &StaticSource{Entries: entries}
}

// Name implementa Source
func (s *StaticSource) Name() string {
	return "static"
}

// Load implementa Source
func (s *StaticSource) Load(ctx context.Context) ([]RawAgent, error) {
	return append([]RawAgent(nil), s.Entries...), nil
}

// SourceFor sceglie la sorgente: path vuoto significa catalogo incorporato
func SourceFor(path string) Source {
	if path == "" {
		return EmbeddedSource{}
	}
	return YAMLSource{Path: path}
}
