package providers

import (
	"context"
)

// GenerateFunc è la firma di una generazione
type GenerateFunc func(ctx context.Context, req Request) (Response, error)

// Func adatta una funzione all'interfaccia Provider
type Func struct {
	name string
	fn   GenerateFunc
}

// NewFunc crea un provider da una funzione
func NewFunc(name string, fn GenerateFunc) *Func {
	return &Func{name: name, fn: fn}
}

// Name implementa Provider
func (f *Func) Name() string {
	return f.name
}

// Generate implementa Provider
func (f *Func) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	resp, err := f.fn(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Provider == "" {
		resp.Provider = f.name
	}
	return resp, nil
}

// Echo è un provider offline che restituisce il prompt ricevuto.
// Utile per ispezionare i prompt e per usare la CLI senza chiavi API.
type Echo struct {
	name string
}

// NewEcho crea un provider echo
func NewEcho(name string) *Echo {
	return &Echo{name: name}
}

// Name implementa Provider
func (e *Echo) Name() string {
	return e.name
}

// Generate implementa Provider
func (e *Echo) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{
		Text:     "[" + e.name + "] " + req.Prompt,
		Provider: e.name,
		Model:    "echo",
	}, nil
}

// HealthCheck implementa HealthChecker
func (e *Echo) HealthCheck(ctx context.Context) error {
	return nil
}
