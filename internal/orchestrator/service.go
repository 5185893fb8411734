// Package orchestrator è la façade del sistema: invocazione di singoli
// agenti, esecuzione di workflow, ricarica del catalogo e passthrough verso
// la persistenza.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/biodoia/goarcanea/internal/prompt"
	"github.com/biodoia/goarcanea/internal/registry"
	"github.com/biodoia/goarcanea/internal/workflow"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// ErrNoStore è restituito dalle operazioni di persistenza senza uno Store
var ErrNoStore = errors.New("no store configured")

// Store è il collaboratore di persistenza. Gli errori sono *models.StorageError.
type Store interface {
	StoreInvocation(ctx context.Context, result *models.AgentInvocationResult) error
	StorePrompt(ctx context.Context, name, content string, tags []string) (string, error)
	GetPrompts(ctx context.Context) ([]models.PromptRecord, error)
	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value string) error
}

// RunRecorder è implementato dagli Store che salvano anche le esecuzioni di workflow
type RunRecorder interface {
	StoreWorkflowRun(ctx context.Context, run *models.WorkflowRunRecord) error
}

// Service espone le operazioni della façade
type Service struct {
	registry *registry.Registry
	gen      workflow.Generator
	engine   *workflow.Engine
	store    Store
	runs     RunRecorder
}

// Option configura il Service
type Option func(*Service)

// WithStore abilita la persistenza
func WithStore(s Store) Option {
	return func(svc *Service) {
		svc.store = s
	}
}

// WithRunRecorder abilita il salvataggio delle esecuzioni di workflow
func WithRunRecorder(r RunRecorder) Option {
	return func(svc *Service) {
		svc.runs = r
	}
}

// New crea il Service. Il registry deve essere già caricato e l'engine
// legato al suo snapshot corrente.
func New(reg *registry.Registry, gen workflow.Generator, engine *workflow.Engine, opts ...Option) *Service {
	svc := &Service{
		registry: reg,
		gen:      gen,
		engine:   engine,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ListAgents restituisce tutti gli agenti della versione corrente
func (s *Service) ListAgents() []models.Agent {
	return s.registry.All()
}

// GetAgent cerca un agente; l'assenza è un *models.NotFoundError
func (s *Service) GetAgent(id string) (models.Agent, error) {
	agent, ok := s.registry.Get(id)
	if !ok {
		return models.Agent{}, &models.NotFoundError{Kind: models.NotFoundAgent, ID: id}
	}
	return agent, nil
}

// InvokeAgent esegue un task con un singolo agente.
//
// Se il salvataggio fallisce il risultato viene restituito comunque,
// insieme a un *models.StorageError.
func (s *Service) InvokeAgent(ctx context.Context, id, task string, taskCtx map[string]string) (*models.AgentInvocationResult, error) {
	agent, err := s.GetAgent(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	gen, err := s.gen.Generate(ctx, agent, prompt.Build(agent, task, taskCtx))
	if err != nil {
		log.Warn().
			Err(err).
			Str("agent", id).
			Msg("Agent invocation failed")
		return nil, err
	}

	result := models.NewInvocationResult(agent, task, gen.Text, gen.Provider, gen.Model, time.Since(start))

	log.Info().
		Str("agent", id).
		Str("provider", gen.Provider).
		Int("attempts", gen.Attempts).
		Bool("cached", gen.Cached).
		Dur("duration", result.Duration).
		Msg("Agent invoked")

	if s.store != nil {
		if err := s.store.StoreInvocation(ctx, result); err != nil {
			log.Error().Err(err).Str("agent", id).Msg("Failed to store invocation")
			return result, asStorageError("store invocation", err)
		}
	}

	return result, nil
}

// ListWorkflows restituisce i riepiloghi dei workflow
func (s *Service) ListWorkflows() []workflow.Summary {
	return s.engine.List()
}

// GetWorkflow restituisce la definizione di un workflow
func (s *Service) GetWorkflow(id string) (workflow.Definition, error) {
	def, ok := s.engine.Definition(id)
	if !ok {
		return workflow.Definition{}, &models.NotFoundError{Kind: models.NotFoundWorkflow, ID: id}
	}
	return def, nil
}

// ExecuteWorkflow esegue un workflow e, se configurato, ne salva l'esito.
// Un errore di salvataggio viene restituito solo se l'esecuzione è riuscita.
func (s *Service) ExecuteWorkflow(ctx context.Context, id, task string, opts models.WorkflowOptions) (*workflow.Result, error) {
	res, err := s.engine.Execute(ctx, id, task, opts)
	if res == nil || s.runs == nil {
		return res, err
	}

	// Il salvataggio non deve dipendere da un ctx già cancellato
	storeCtx := context.WithoutCancel(ctx)
	if storeErr := s.runs.StoreWorkflowRun(storeCtx, runRecord(res)); storeErr != nil {
		log.Error().Err(storeErr).Str("workflow", id).Msg("Failed to store workflow run")
		if err == nil {
			return res, asStorageError("store workflow run", storeErr)
		}
	}
	return res, err
}

// ReloadRegistry carica una nuova versione del catalogo e ricollega il
// motore di workflow. In caso di errore resta attiva la versione precedente.
func (s *Service) ReloadRegistry(ctx context.Context) (registry.LoadReport, error) {
	report, err := s.registry.LoadWith(ctx, s.engine.Check)
	if err != nil {
		return report, err
	}
	if err := s.engine.Rebind(s.registry.Snapshot()); err != nil {
		return report, err
	}
	return report, nil
}

// SavePrompt salva un prompt e ne restituisce l'id
func (s *Service) SavePrompt(ctx context.Context, name, content string, tags []string) (string, error) {
	if s.store == nil {
		return "", ErrNoStore
	}
	id, err := s.store.StorePrompt(ctx, name, content, tags)
	if err != nil {
		return "", asStorageError("store prompt", err)
	}
	return id, nil
}

// Prompts restituisce i prompt salvati
func (s *Service) Prompts(ctx context.Context) ([]models.PromptRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	prompts, err := s.store.GetPrompts(ctx)
	if err != nil {
		return nil, asStorageError("get prompts", err)
	}
	return prompts, nil
}

// Config legge un valore di configurazione persistito
func (s *Service) Config(ctx context.Context, key string) (string, bool, error) {
	if s.store == nil {
		return "", false, ErrNoStore
	}
	value, ok, err := s.store.GetConfig(ctx, key)
	if err != nil {
		return "", false, asStorageError("get config", err)
	}
	return value, ok, nil
}

// SetConfig scrive un valore di configurazione persistito
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.SetConfig(ctx, key, value); err != nil {
		return asStorageError("set config", err)
	}
	return nil
}

func asStorageError(op string, err error) error {
	var se *models.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &models.StorageError{Op: op, Cause: err}
}

func runRecord(res *workflow.Result) *models.WorkflowRunRecord {
	phases, err := json.Marshal(res.Phases)
	if err != nil {
		phases = []byte("[]")
	}
	return &models.WorkflowRunRecord{
		ID:         res.RunID,
		WorkflowID: res.WorkflowID,
		Task:       res.Task,
		Status:     res.Status,
		Final:      res.Final,
		Phases:     datatypes.JSON(phases),
		Error:      res.Error,
		DurationMs: res.Duration.Milliseconds(),
		StartedAt:  res.StartedAt,
	}
}
