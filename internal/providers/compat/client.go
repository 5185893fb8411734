// Package compat implementa un provider per backend OpenAI-compatible
// (Ollama, LM Studio, vLLM, gateway) via HTTP diretto.
package compat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goarcanea/internal/providers"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Config configura il client
type Config struct {
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client implementa un client OpenAI-compatible
type Client struct {
	name       string
	model      string
	maxTokens  int
	httpClient *resty.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// NewClient crea un nuovo client OpenAI-compatible
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("compat provider requires a base URL")
	}
	if cfg.Name == "" {
		cfg.Name = "compat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	c := &Client{
		name:       cfg.Name,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: resty.New(),
	}
	c.configureHTTPClient(cfg)
	return c, nil
}

// configureHTTPClient configura il client HTTP. Nessun retry qui: il router
// applica la sua policy su tutta la catena.
func (c *Client) configureHTTPClient(cfg Config) {
	c.httpClient.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	// Set API key if present
	if cfg.APIKey != "" {
		c.httpClient.SetAuthToken(cfg.APIKey)
	}

	c.httpClient.OnAfterResponse(func(client *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("provider", c.name).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("Compat API response")
		return nil
	})
}

// Name implementa providers.Provider
func (c *Client) Name() string {
	return c.name
}

// Model restituisce il modello configurato
func (c *Client) Model() string {
	return c.model
}

// Generate implementa providers.Provider
func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var result chatCompletionResponse
	var errResp errorResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(chatCompletionRequest{
			Model:     model,
			Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
			MaxTokens: maxTokens,
		}).
		SetResult(&result).
		SetError(&errResp).
		Post("/v1/chat/completions")
	if err != nil {
		return providers.Response{}, fmt.Errorf("%s: request failed: %w", c.name, err)
	}

	if resp.IsError() {
		return providers.Response{}, c.handleErrorResponse(resp.StatusCode(), &errResp)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return providers.Response{}, fmt.Errorf("%s: %w", c.name, providers.ErrEmptyResponse)
	}

	return providers.Response{
		Text:     result.Choices[0].Message.Content,
		Provider: c.name,
		Model:    result.Model,
		Usage: providers.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		},
	}, nil
}

// HealthCheck verifica che l'endpoint dei modelli risponda
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get("/v1/models")
	if err != nil {
		return fmt.Errorf("%s: health check failed: %w", c.name, err)
	}
	if resp.IsError() {
		return providers.NewAPIError(c.name, resp.StatusCode(), "health check failed")
	}
	return nil
}

// handleErrorResponse gestisce le risposte di errore
func (c *Client) handleErrorResponse(statusCode int, errResp *errorResponse) error {
	return providers.NewAPIError(c.name, statusCode, errResp.Error.Message)
}
