package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/rs/zerolog/log"
)

var ErrProviderAlreadyExists = errors.New("provider already exists")

// Registry gestisce tutti i provider disponibili
type Registry struct {
	providers map[string]Provider
	metadata  map[string]Metadata
	mu        sync.RWMutex
}

// Metadata contiene metadata su un provider registrato
type Metadata struct {
	Name         string
	Type         string // "anthropic", "openai", "compat", "echo"
	Model        string
	RegisteredAt time.Time
}

// NewRegistry crea un nuovo registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		metadata:  make(map[string]Metadata),
	}
}

// Register registra un nuovo provider
func (r *Registry) Register(provider Provider, providerType, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyExists, name)
	}

	r.providers[name] = provider
	r.metadata[name] = Metadata{
		Name:         name,
		Type:         providerType,
		Model:        model,
		RegisteredAt: time.Now(),
	}

	log.Debug().
		Str("provider", name).
		Str("type", providerType).
		Msg("Provider registered")

	return nil
}

// Get restituisce un provider per nome, o un NotFoundError di tipo provider
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &models.NotFoundError{Kind: models.NotFoundProvider, ID: name}
	}
	return p, nil
}

// Metadata restituisce i metadata di un provider
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metadata[name]
	return m, ok
}

// List restituisce i nomi dei provider in ordine alfabetico
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All restituisce una copia della mappa nome -> provider
func (r *Registry) All() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Provider, len(r.providers))
	for k, v := range r.providers {
		out[k] = v
	}
	return out
}

// HealthCheck verifica i provider che implementano HealthChecker, in parallelo
func (r *Registry) HealthCheck(ctx context.Context) map[string]error {
	providers := r.All()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, p := range providers {
		hc, ok := p.(HealthChecker)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(name string, hc HealthChecker) {
			defer wg.Done()
			err := hc.HealthCheck(ctx)

			mu.Lock()
			results[name] = err
			mu.Unlock()

			if err != nil {
				log.Warn().Err(err).Str("provider", name).Msg("Health check failed")
			}
		}(name, hc)
	}

	wg.Wait()
	return results
}
