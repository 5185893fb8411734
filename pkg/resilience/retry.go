package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrMaxRetriesExceeded viene restituito quando si supera il numero massimo di retry
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryConfig contiene la configurazione del retry
type RetryConfig struct {
	// MaxRetries numero massimo di tentativi aggiuntivi (0 = nessun retry)
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// InitialBackoff backoff iniziale
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`

	// MaxBackoff backoff massimo
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`

	// BackoffMultiplier moltiplicatore per exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`

	// Jitter abilita jitter nel backoff
	Jitter bool `yaml:"jitter" mapstructure:"jitter"`

	// JitterFraction frazione di jitter (0.0-1.0)
	JitterFraction float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`

	// RetryableChecker funzione custom per verificare se un errore è retryable.
	// Se nil viene usato IsTransient.
	RetryableChecker func(error) bool `yaml:"-" mapstructure:"-"`

	// OnRetry callback chiamata prima di ogni retry
	OnRetry func(attempt int, err error, backoff time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultRetryConfig restituisce una configurazione di default
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		JitterFraction:    0.1,
	}
}

// Retry implementa retry logic con exponential backoff e jitter.
// È sicuro per uso concorrente: non mantiene stato tra le chiamate.
type Retry struct {
	config RetryConfig
}

// NewRetry crea un nuovo retry handler
func NewRetry(config RetryConfig) *Retry {
	def := DefaultRetryConfig()
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	if config.JitterFraction < 0 || config.JitterFraction > 1 {
		config.JitterFraction = def.JitterFraction
	}

	return &Retry{config: config}
}

// Config restituisce la configurazione normalizzata
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute esegue fn fino a MaxRetries+1 volte. Il numero di tentativo (da 0)
// viene passato a fn. Restituisce il numero di tentativi effettuati.
func (r *Retry) Execute(ctx context.Context, fn func(attempt int) error) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}

		err := fn(attempt)
		if err == nil {
			return attempt + 1, nil
		}
		lastErr = err

		// Se il chiamante ha cancellato, non ha senso ritentare
		if ctx.Err() != nil {
			return attempt + 1, err
		}

		if !r.isRetryable(err) {
			log.Debug().
				Err(err).
				Msg("Error is not retryable, stopping retries")
			return attempt + 1, err
		}

		if attempt >= r.config.MaxRetries {
			log.Debug().
				Err(err).
				Int("attempts", attempt+1).
				Msg("Max retries exceeded")
			return attempt + 1, errors.Join(ErrMaxRetriesExceeded, err)
		}

		backoff := r.calculateBackoff(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, backoff)
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", r.config.MaxRetries).
			Dur("backoff", backoff).
			Msg("Retrying after error")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		}
	}

	return r.config.MaxRetries + 1, lastErr
}

// calculateBackoff calcola il backoff per un tentativo
func (r *Retry) calculateBackoff(attempt int) time.Duration {
	// Exponential backoff: initial * multiplier^attempt
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffMultiplier, float64(attempt))

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	if r.config.Jitter {
		// backoff ± (backoff * jitterFraction * random(-1, 1))
		backoff += backoff * r.config.JitterFraction * (rand.Float64()*2 - 1)
	}

	return time.Duration(backoff)
}

// isRetryable verifica se un errore è retryable
func (r *Retry) isRetryable(err error) bool {
	if r.config.RetryableChecker != nil {
		return r.config.RetryableChecker(err)
	}
	return IsTransient(err)
}

// RetryPresets sono le policy selezionabili per nome da configurazione
var RetryPresets = map[string]RetryConfig{
	"fast": {
		MaxRetries:        2,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		JitterFraction:    0.1,
	},
	"standard": DefaultRetryConfig(),
	"persistent": {
		MaxRetries:        5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.5,
		Jitter:            true,
		JitterFraction:    0.2,
	},
}

// RetryPreset restituisce il preset con quel nome (case-insensitive)
func RetryPreset(name string) (RetryConfig, bool) {
	cfg, ok := RetryPresets[strings.ToLower(strings.TrimSpace(name))]
	return cfg, ok
}
