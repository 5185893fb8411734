package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrEmptyCatalog indica un caricamento senza alcun agente valido
var ErrEmptyCatalog = errors.New("catalog contains no valid agents")

// SkippedEntry descrive una voce scartata durante il caricamento
type SkippedEntry struct {
	Index  int
	ID     string
	Reason string
}

// LoadReport riassume un caricamento riuscito
type LoadReport struct {
	Source  string
	Version uint64
	Loaded  int
	Skipped []SkippedEntry
}

// Registry è il catalogo degli agenti.
//
// Ogni Load pubblica uno Snapshot immutabile con versione crescente; le
// letture caricano il puntatore corrente senza lock.
type Registry struct {
	source  Source
	current atomic.Pointer[Snapshot]

	loadMu  sync.Mutex
	version uint64
}

// New crea un registry vuoto (versione 0) legato a una sorgente
func New(source Source) *Registry {
	r := &Registry{source: source}
	r.current.Store(emptySnapshot())
	return r
}

// Load legge la sorgente e pubblica una nuova versione.
// In caso di errore la versione corrente resta attiva.
func (r *Registry) Load(ctx context.Context) (LoadReport, error) {
	return r.LoadWith(ctx, nil)
}

// LoadWith è come Load, ma lo snapshot candidato viene pubblicato solo se
// accept (quando non nil) non restituisce errore.
func (r *Registry) LoadWith(ctx context.Context, accept func(*Snapshot) error) (LoadReport, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	report := LoadReport{Source: r.source.Name()}

	raw, err := r.source.Load(ctx)
	if err != nil {
		return report, &models.RegistryLoadError{Source: report.Source, Cause: err}
	}

	agents, skipped := validate(raw)
	report.Skipped = skipped
	for _, s := range skipped {
		log.Warn().
			Str("source", report.Source).
			Int("index", s.Index).
			Str("agent", s.ID).
			Str("reason", s.Reason).
			Msg("Skipping invalid agent entry")
	}

	if len(agents) == 0 {
		return report, &models.RegistryLoadError{Source: report.Source, Cause: ErrEmptyCatalog}
	}

	snap := newSnapshot(r.version+1, agents)
	if accept != nil {
		if err := accept(snap); err != nil {
			return report, fmt.Errorf("registry version %d rejected: %w", snap.Version(), err)
		}
	}
	r.version++
	r.current.Store(snap)

	report.Version = snap.Version()
	report.Loaded = snap.Len()

	log.Info().
		Str("source", report.Source).
		Uint64("version", report.Version).
		Int("agents", report.Loaded).
		Int("skipped", len(report.Skipped)).
		Msg("Agent registry loaded")

	return report, nil
}

// Snapshot restituisce la versione corrente
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// All restituisce tutti gli agenti della versione corrente
func (r *Registry) All() []models.Agent {
	return r.Snapshot().All()
}

// Get cerca un agente per id
func (r *Registry) Get(id string) (models.Agent, bool) {
	return r.Snapshot().Get(id)
}

// Count restituisce il numero di agenti
func (r *Registry) Count() int {
	return r.Snapshot().Len()
}

// validate converte le voci grezze, scartando quelle non valide
func validate(raw []RawAgent) ([]models.Agent, []SkippedEntry) {
	agents := make([]models.Agent, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	var skipped []SkippedEntry

	for i, entry := range raw {
		id := strings.TrimSpace(entry.ID)
		skip := func(reason string) {
			skipped = append(skipped, SkippedEntry{Index: i, ID: id, Reason: reason})
		}

		if entry.Invalid != "" {
			skip(entry.Invalid)
			continue
		}
		if id == "" {
			skip("missing id")
			continue
		}
		if strings.TrimSpace(entry.Name) == "" {
			skip("missing name")
			continue
		}
		if seen[id] {
			skip("duplicate id")
			continue
		}

		freq, err := parseFrequency(entry.Frequency)
		if err != nil {
			skip(err.Error())
			continue
		}

		seen[id] = true
		agents = append(agents, models.Agent{
			ID:           id,
			Name:         strings.TrimSpace(entry.Name),
			Court:        entry.Court,
			Specialty:    entry.Specialty,
			Frequency:    freq,
			Element:      entry.Element,
			CourtType:    models.CourtType(entry.CourtType),
			Personality:  entry.Personality,
			Capabilities: append([]string(nil), entry.Capabilities...),
		})
	}

	return agents, skipped
}

// parseFrequency accetta "528", "528.5" o "528Hz"
func parseFrequency(value string) (float64, error) {
	v := strings.TrimSpace(value)
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(v, "Hz"), "hz"))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric frequency %q", value)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative frequency %q", value)
	}
	return f, nil
}
