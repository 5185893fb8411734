package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/biodoia/goarcanea/internal/providers"
)

// MockProvider è un provider scriptato per i test.
// Le risposte in coda vengono consumate in ordine; l'ultima resta valida
// per tutte le chiamate successive.
type MockProvider struct {
	mu           sync.Mutex
	name         string
	Responses    []MockResponse
	Handler      func(ctx context.Context, req providers.Request) (providers.Response, error)
	Delay        time.Duration
	RequestCount int
	Requests     []providers.Request
	ShouldFail   bool
	FailureErr   error

	inFlight    int
	maxInFlight int
}

// MockResponse è una risposta in coda
type MockResponse struct {
	Content string
	Error   error
}

// NewMockProvider crea un mock che risponde "mock response from <name>"
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name implementa providers.Provider
func (m *MockProvider) Name() string {
	return m.name
}

// Generate implementa providers.Provider
func (m *MockProvider) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	m.mu.Lock()
	m.RequestCount++
	m.Requests = append(m.Requests, req)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.Delay
	handler := m.Handler
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return providers.Response{}, ctx.Err()
		}
	}

	if handler != nil {
		return handler(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		return providers.Response{}, m.FailureErr
	}

	if len(m.Responses) == 0 {
		return m.response("mock response from " + m.name), nil
	}

	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	if resp.Error != nil {
		return providers.Response{}, resp.Error
	}
	return m.response(resp.Content), nil
}

func (m *MockProvider) response(text string) providers.Response {
	return providers.Response{
		Text:     text,
		Provider: m.name,
		Model:    "mock",
	}
}

// GetRequestCount restituisce il numero di chiamate ricevute
func (m *MockProvider) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetLastRequest restituisce l'ultima richiesta ricevuta
func (m *MockProvider) GetLastRequest() (providers.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return providers.Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// MaxConcurrent restituisce il massimo numero di chiamate sovrapposte osservate
func (m *MockProvider) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// SetError fa fallire tutte le chiamate successive con err (nil per ripristinare)
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = err != nil
	m.FailureErr = err
}

// AddResponse accoda una risposta
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
}

// Reset azzera contatori e risposte
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
	m.Responses = nil
	m.ShouldFail = false
	m.FailureErr = nil
	m.maxInFlight = 0
}

// MockError è un errore generico restituito dal mock
type MockError struct {
	Message string
}

func (e *MockError) Error() string {
	return e.Message
}
