// Package openai implementa providers.Provider sopra la Chat Completions API di OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/biodoia/goarcanea/internal/providers"
	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// DefaultModel è il modello usato se la configurazione non ne indica uno
const DefaultModel = sdk.ChatModelGPT4oMini

// Config configura il provider
type Config struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Provider è un client OpenAI
type Provider struct {
	name      string
	client    sdk.Client
	model     string
	maxTokens int64
}

// New crea un provider OpenAI. I retry dell'SDK sono disabilitati:
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
		p.name = "openai"
	}
	if p.model == "" {
		p.model = DefaultModel
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

	params := sdk.ChatCompletionNewParams{
		Model: model,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.UserMessage(req.Prompt),
		},
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(maxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return providers.Response{}, p.wrapError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return providers.Response{}, fmt.Errorf("%s: %w", p.name, providers.ErrEmptyResponse)
	}

	log.Debug().
		Str("provider", p.name).
		Str("agent", req.AgentID).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("OpenAI generation completed")

	return providers.Response{
		Text:     resp.Choices[0].Message.Content,
		Provider: p.name,
		Model:    resp.Model,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
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
