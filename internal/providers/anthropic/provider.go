// Package anthropic implementa providers.Provider sopra la Messages API di Anthropic.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/rs/zerolog/log"
)

// DefaultModel è il modello usato se la configurazione non ne indica uno
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens è il limite di token in uscita di default
const DefaultMaxTokens = 4096

// Config configura il provider
type Config struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Provider è un client Anthropic
type Provider struct {
	name      string
	client    sdk.Client
	model     string
	maxTokens int64
}

// New crea un provider Anthropic. I retry dell'SDK sono disabilitati:
// li gestisce il router.
func New(cfg Config, opts ...option.RequestOption) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Name, providers.ErrMissingAPIKey)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	p := &Provider{
		name:      cfg.Name,
		client:    sdk.NewClient(reqOpts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
	if p.name == "" {
		p.name = "anthropic"
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultMaxTokens
	}

	return p, nil
}

// Name implementa providers.Provider
func (p *Provider) Name() string {
	return p.name
}

// Model restituisce il modello configurato
func (p *Provider) Model() string {
	return p.model
}

// Generate implementa providers.Provider
func (p *Provider) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	msg, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return providers.Response{}, p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		return providers.Response{}, fmt.Errorf("%s: %w", p.name, providers.ErrEmptyResponse)
	}

	log.Debug().
		Str("provider", p.name).
		Str("agent", req.AgentID).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("Anthropic generation completed")

	return providers.Response{
		Text:     text.String(),
		Provider: p.name,
		Model:    string(msg.Model),
		Usage: providers.Usage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

// wrapError converte gli errori dell'SDK in providers.APIError
func (p *Provider) wrapError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return providers.NewAPIError(p.name, apiErr.StatusCode, apiErr.Error())
	}
	return fmt.Errorf("%s: %w", p.name, err)
}
