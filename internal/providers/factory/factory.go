// Package factory costruisce i provider dalla configurazione.
package factory

import (
	"context"
	"fmt"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/biodoia/goarcanea/internal/providers/anthropic"
	"github.com/biodoia/goarcanea/internal/providers/compat"
	"github.com/biodoia/goarcanea/internal/providers/openai"
	"github.com/biodoia/goarcanea/pkg/config"
	"github.com/rs/zerolog/log"
)

// Build crea e registra un provider per ogni voce di configurazione.
//
// Un provider che non può essere inizializzato (tipicamente per chiave API
// mancante) viene comunque registrato come sempre fallente, così le regole
// di routing restano valide e la catena di fallback lo salta.
func Build(cfgs []config.ProviderConfig) (*providers.Registry, error) {
	reg := providers.NewRegistry()

	for _, pc := range cfgs {
		p, model, err := New(pc)
		if err != nil {
			log.Warn().
				Err(err).
				Str("provider", pc.Name).
				Str("type", pc.Type).
				Msg("Provider unavailable, calls will fail over")
			p = unavailable(pc.Name, err)
		}
		if err := reg.Register(p, pc.Type, model); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// New crea un singolo provider e restituisce anche il modello effettivo
func New(pc config.ProviderConfig) (providers.Provider, string, error) {
	switch pc.Type {
	case config.ProviderTypeAnthropic:
		p, err := anthropic.New(anthropic.Config{
			Name:      pc.Name,
			APIKey:    pc.ResolveAPIKey(),
			BaseURL:   pc.BaseURL,
			Model:     pc.Model,
			MaxTokens: pc.MaxTokens,
		})
		if err != nil {
			return nil, pc.Model, err
		}
		return p, p.Model(), nil

	case config.ProviderTypeOpenAI:
		p, err := openai.New(openai.Config{
			Name:      pc.Name,
			APIKey:    pc.ResolveAPIKey(),
			BaseURL:   pc.BaseURL,
			Model:     pc.Model,
			MaxTokens: pc.MaxTokens,
		})
		if err != nil {
			return nil, pc.Model, err
		}
		return p, p.Model(), nil

	case config.ProviderTypeCompat:
		p, err := compat.NewClient(compat.Config{
			Name:      pc.Name,
			BaseURL:   pc.BaseURL,
			APIKey:    pc.ResolveAPIKey(),
			Model:     pc.Model,
			MaxTokens: pc.MaxTokens,
		})
		if err != nil {
			return nil, pc.Model, err
		}
		return p, p.Model(), nil

	case config.ProviderTypeEcho:
		return providers.NewEcho(pc.Name), "echo", nil

	default:
		return nil, "", fmt.Errorf("unsupported provider type %q", pc.Type)
	}
}

func unavailable(name string, cause error) providers.Provider {
	return providers.NewFunc(name, func(ctx context.Context, req providers.Request) (providers.Response, error) {
		return providers.Response{}, cause
	})
}
