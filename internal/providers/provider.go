// Package providers definisce il contratto dei backend di generazione e
// un registro per costruirli dalla configurazione.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider è un backend di generazione testo: stringa in ingresso, stringa in uscita.
type Provider interface {
	// Name restituisce il nome con cui il provider è referenziato dal routing
	Name() string

	// Generate esegue una singola generazione. Non ritenta: retry e fallback
	// sono responsabilità del router.
	Generate(ctx context.Context, req Request) (Response, error)
}

// HealthChecker è implementato dai provider in grado di verificare la connettività
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Request è una richiesta di generazione
type Request struct {
	AgentID   string
	Prompt    string
	Model     string // opzionale, sovrascrive il modello del provider
	MaxTokens int
}

// Response è il risultato di una generazione
type Response struct {
	Text     string
	Provider string
	Model    string
	Usage    Usage
}

// Usage rappresenta le statistiche di utilizzo
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

var (
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrModelNotFound      = errors.New("model not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrEmptyResponse      = errors.New("empty response")
	ErrMissingAPIKey      = errors.New("missing API key")
)

// APIError è un errore HTTP restituito da un backend.
// Implementa StatusCode() così il router può classificarlo come transitorio o no.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

// NewAPIError costruisce un APIError
func NewAPIError(provider string, status int, message string) *APIError {
	return &APIError{Provider: provider, Status: status, Message: message}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Provider, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message)
}

// StatusCode restituisce lo status HTTP
func (e *APIError) StatusCode() int {
	return e.Status
}

// Is mappa gli status più comuni sugli errori sentinella
func (e *APIError) Is(target error) bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return target == ErrInvalidAPIKey
	case http.StatusTooManyRequests:
		return target == ErrRateLimitExceeded
	case http.StatusNotFound:
		return target == ErrModelNotFound
	case http.StatusBadRequest:
		return target == ErrInvalidRequest
	case http.StatusServiceUnavailable:
		return target == ErrServiceUnavailable
	}
	return false
}
