package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// CachedGeneration è una risposta di generazione salvata in cache
type CachedGeneration struct {
	Text     string    `json:"text"`
	Provider string    `json:"provider"`
	Model    string    `json:"model,omitempty"`
	CachedAt time.Time `json:"cached_at"`
}

// GenerationCache memorizza le risposte dei provider indicizzate per
// provider, modello e prompt
type GenerationCache struct {
	cache Cache
	ttl   time.Duration
}

// NewGenerationCache crea un response cache sopra un Cache qualsiasi
func NewGenerationCache(c Cache, ttl time.Duration) *GenerationCache {
	return &GenerationCache{cache: c, ttl: ttl}
}

// Key calcola la chiave di cache di una generazione
func (g *GenerationCache) Key(provider, model, prompt string) string {
	return "gen:" + HashKey(provider, model, prompt)
}

// Get cerca una generazione. Gli errori del backend sono trattati come miss.
func (g *GenerationCache) Get(ctx context.Context, provider, model, prompt string) (CachedGeneration, bool) {
	data, err := g.cache.Get(ctx, g.Key(provider, model, prompt))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Warn().Err(err).Str("provider", provider).Msg("Generation cache read failed")
		}
		return CachedGeneration{}, false
	}

	var gen CachedGeneration
	if err := json.Unmarshal(data, &gen); err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("Discarding corrupt cache entry")
		_ = g.cache.Delete(ctx, g.Key(provider, model, prompt))
		return CachedGeneration{}, false
	}
	return gen, true
}

// Put salva una generazione riuscita
func (g *GenerationCache) Put(ctx context.Context, prompt string, gen CachedGeneration) {
	if gen.CachedAt.IsZero() {
		gen.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(gen)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, g.Key(gen.Provider, gen.Model, prompt), data, g.ttl); err != nil {
		log.Warn().Err(err).Str("provider", gen.Provider).Msg("Generation cache write failed")
	}
}

// Stats restituisce le statistiche del cache sottostante
func (g *GenerationCache) Stats() CacheStats {
	return g.cache.Stats()
}
