// Package router risolve il provider di ogni agente ed esegue la generazione
// con timeout, retry e catena di fallback.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/biodoia/goarcanea/internal/stats"
	"github.com/biodoia/goarcanea/pkg/cache"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/biodoia/goarcanea/pkg/resilience"
	"github.com/rs/zerolog/log"
)

// ErrNilTable è restituito da Swap con una tabella nil
var ErrNilTable = errors.New("router: nil table")

// Generation è il risultato di una generazione riuscita
type Generation struct {
	Text      string          `json:"text"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model,omitempty"`
	Attempts  int             `json:"attempts"`
	Fallbacks int             `json:"fallbacks"`
	Cached    bool            `json:"cached"`
	Duration  time.Duration   `json:"duration"`
	Usage     providers.Usage `json:"usage"`
}

// Router instrada le generazioni. Il percorso di lettura non prende lock:
// ogni chiamata usa la Table pubblicata al suo inizio.
type Router struct {
	table   atomic.Pointer[Table]
	cache   *cache.GenerationCache
	metrics *stats.Metrics
}

// Option configura un Router
type Option func(*Router)

// WithCache abilita il response cache
func WithCache(c *cache.GenerationCache) Option {
	return func(r *Router) {
		r.cache = c
	}
}

// WithMetrics abilita le metriche Prometheus
func WithMetrics(m *stats.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// New crea un router con la tabella iniziale
func New(table *Table, opts ...Option) (*Router, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	r.table.Store(table)
	return r, nil
}

// Table restituisce la tabella corrente
func (r *Router) Table() *Table {
	return r.table.Load()
}

// Swap pubblica una nuova tabella. Le chiamate in corso terminano con la precedente.
func (r *Router) Swap(table *Table) error {
	if table == nil {
		return ErrNilTable
	}
	r.table.Store(table)
	log.Info().
		Str("default_provider", table.DefaultProvider()).
		Int("rules", len(table.rules)).
		Msg("Routing table swapped")
	return nil
}

// Route restituisce la catena di provider per l'agente con la tabella corrente
func (r *Router) Route(agent models.Agent) []string {
	return r.table.Load().Route(agent)
}

// Generate esegue il prompt per l'agente percorrendo la catena di provider.
// Esaurita la catena restituisce un *models.GenerationError; la cancellazione
// del chiamante interrompe subito con un GenerationError che avvolge ctx.Err().
func (r *Router) Generate(ctx context.Context, agent models.Agent, prompt string) (Generation, error) {
	t := r.table.Load()
	chain := t.Route(agent)
	start := time.Now()

	var (
		tried    []string
		attempts int
		lastErr  error
	)

	fail := func(cause error) (Generation, error) {
		last := ""
		if len(tried) > 0 {
			last = tried[len(tried)-1]
		}
		r.metrics.RecordGeneration(last, cause, time.Since(start))
		return Generation{}, &models.GenerationError{
			AgentID:   agent.ID,
			Providers: tried,
			Attempts:  attempts,
			Cause:     cause,
		}
	}

	for i, name := range chain {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		if i > 0 {
			r.metrics.RecordFallback(chain[i-1], name)
			log.Warn().
				Err(lastErr).
				Str("agent", agent.ID).
				Str("from", chain[i-1]).
				Str("to", name).
				Msg("Falling back to next provider")
		}

		model := t.Model(name)
		if r.cache != nil {
			cached, ok := r.cache.Get(ctx, name, model, prompt)
			r.metrics.RecordCache(name, ok)
			if ok {
				r.metrics.RecordGeneration(name, nil, time.Since(start))
				return Generation{
					Text:      cached.Text,
					Provider:  cached.Provider,
					Model:     cached.Model,
					Attempts:  attempts,
					Fallbacks: i,
					Cached:    true,
					Duration:  time.Since(start),
				}, nil
			}
		}

		tried = append(tried, name)
		resp, n, err := r.call(ctx, t, name, agent, prompt)
		attempts += n
		if err == nil {
			gen := Generation{
				Text:      resp.Text,
				Provider:  name,
				Model:     resp.Model,
				Attempts:  attempts,
				Fallbacks: i,
				Duration:  time.Since(start),
				Usage:     resp.Usage,
			}
			if gen.Model == "" {
				gen.Model = model
			}
			if r.cache != nil {
				r.cache.Put(ctx, prompt, cache.CachedGeneration{
					Text:     gen.Text,
					Provider: name,
					Model:    model,
				})
			}
			r.metrics.RecordGeneration(name, nil, gen.Duration)
			r.metrics.RecordTokens(name, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

			log.Debug().
				Str("agent", agent.ID).
				Str("provider", name).
				Int("attempts", attempts).
				Dur("duration", gen.Duration).
				Msg("Generation completed")
			return gen, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		lastErr = err
	}

	log.Error().
		Err(lastErr).
		Str("agent", agent.ID).
		Strs("providers", tried).
		Int("attempts", attempts).
		Msg("Provider chain exhausted")
	return fail(lastErr)
}

// call esegue le chiamate a un singolo provider con la policy di retry della tabella
func (r *Router) call(ctx context.Context, t *Table, name string, agent models.Agent, prompt string) (providers.Response, int, error) {
	p := t.providers[name]
	limiter := t.limiters[name]

	cfg := t.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		r.metrics.RecordRetry(name)
	}
	retry := resilience.NewRetry(cfg)

	var resp providers.Response
	attempts, err := retry.Execute(ctx, func(attempt int) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		out, err := p.Generate(callCtx, providers.Request{
			AgentID: agent.ID,
			Prompt:  prompt,
		})
		if err == nil && out.Text == "" {
			err = fmt.Errorf("%s: %w", name, providers.ErrEmptyResponse)
		}
		r.metrics.RecordAttempt(name, err)
		if err != nil {
			log.Debug().
				Err(err).
				Str("agent", agent.ID).
				Str("provider", name).
				Int("attempt", attempt+1).
				Str("category", resilience.CategorizeError(err).String()).
				Msg("Provider attempt failed")
			return err
		}
		resp = out
		return nil
	})
	return resp, attempts, err
}
