// Package workflow esegue workflow multi-fase di agenti: gli agenti di una
// fase girano in parallelo, le fasi in sequenza, e ogni fase riceve come
// contesto gli output riusciti delle precedenti.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/biodoia/goarcanea/internal/prompt"
	"github.com/biodoia/goarcanea/internal/registry"
	"github.com/biodoia/goarcanea/internal/router"
	"github.com/biodoia/goarcanea/internal/stats"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrNilSnapshot è restituito quando manca lo snapshot del registry
var ErrNilSnapshot = errors.New("workflow: nil registry snapshot")

// Generator è la dipendenza del motore verso il router
type Generator interface {
	Generate(ctx context.Context, agent models.Agent, prompt string) (router.Generation, error)
}

// Engine esegue i workflow di un catalogo contro uno snapshot del registry
type Engine struct {
	gen         Generator
	defs        []Definition
	byID        map[string]Definition
	snapshot    atomic.Pointer[registry.Snapshot]
	maxParallel int
	metrics     *stats.Metrics
}

// Option configura un Engine
type Option func(*Engine)

// WithMaxParallel limita le chiamate concorrenti per fase (0 = nessun limite)
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		e.maxParallel = n
	}
}

// WithMetrics abilita le metriche Prometheus
func WithMetrics(m *stats.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine crea un motore e valida il catalogo contro lo snapshot
func NewEngine(gen Generator, catalog *Catalog, snap *registry.Snapshot, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, &models.ConfigError{Subject: "workflows", Reason: "nil catalog"}
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		gen:  gen,
		defs: append([]Definition(nil), catalog.Workflows...),
		byID: make(map[string]Definition, len(catalog.Workflows)),
	}
	for _, d := range e.defs {
		e.byID[d.ID] = d
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.Rebind(snap); err != nil {
		return nil, err
	}
	return e, nil
}

// Rebind valida le definizioni contro un nuovo snapshot e lo pubblica.
// In caso di errore resta attivo lo snapshot precedente; le esecuzioni in
// corso continuano con quello con cui sono partite.
func (e *Engine) Rebind(snap *registry.Snapshot) error {
	if err := e.Check(snap); err != nil {
		return err
	}
	e.snapshot.Store(snap)
	log.Debug().
		Uint64("registry_version", snap.Version()).
		Int("workflows", len(e.defs)).
		Msg("Workflow engine bound to registry snapshot")
	return nil
}

// Check verifica che tutte le definizioni siano eseguibili con snap
func (e *Engine) Check(snap *registry.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	for _, d := range e.defs {
		if err := d.Bind(snap); err != nil {
			return err
		}
	}
	return nil
}

// List restituisce i riepiloghi in ordine di catalogo
func (e *Engine) List() []Summary {
	out := make([]Summary, 0, len(e.defs))
	for _, d := range e.defs {
		out = append(out, d.Summary())
	}
	return out
}

// Definition restituisce una copia della definizione con quell'id
func (e *Engine) Definition(id string) (Definition, bool) {
	d, ok := e.byID[id]
	if !ok {
		return Definition{}, false
	}
	phases := make([]Phase, len(d.Phases))
	for i, p := range d.Phases {
		phases[i] = Phase{Name: p.Name, Agents: append([]string(nil), p.Agents...)}
	}
	d.Phases = phases
	return d, true
}

// Execute esegue un workflow. Un id sconosciuto restituisce un NotFoundError
// senza chiamate. Gli stati terminali restituiscono sempre un Result; l'errore
// coincide con Result.Err.
func (e *Engine) Execute(ctx context.Context, workflowID, task string, opts models.WorkflowOptions) (*Result, error) {
	def, ok := e.byID[workflowID]
	if !ok {
		return nil, &models.NotFoundError{Kind: models.NotFoundWorkflow, ID: workflowID}
	}
	snap := e.snapshot.Load()

	res := &Result{
		RunID:           uuid.New().String(),
		WorkflowID:      def.ID,
		Task:            task,
		Options:         opts,
		Context:         make(map[string]string),
		RegistryVersion: snap.Version(),
		StartedAt:       time.Now().UTC(),
	}
	events := &eventLog{}
	events.add(Event{Type: EventRunStarted, Message: def.Name})
	e.metrics.WorkflowStarted()

	log.Info().
		Str("workflow", def.ID).
		Str("run", res.RunID).
		Int("phases", len(def.Phases)).
		Msg("Workflow started")

	decorated := prompt.DecorateTask(task, opts)

	for i, phase := range def.Phases {
		if err := ctx.Err(); err != nil {
			res.Status, res.Err = models.WorkflowStatusCancelled, err
			break
		}

		events.add(Event{Type: EventPhaseStarted, Phase: phase.Name})
		log.Info().
			Str("workflow", def.ID).
			Str("phase", phase.Name).
			Int("index", i).
			Int("agents", len(phase.Agents)).
			Msg("Phase started")

		pr := e.runPhase(ctx, snap, phase, i, decorated, cloneContext(res.Context), events)
		res.Phases = append(res.Phases, pr)
		e.metrics.RecordPhase(def.ID, pr.Succeeded(), pr.Failed())

		if err := ctx.Err(); err != nil {
			res.Status, res.Err = models.WorkflowStatusCancelled, err
			break
		}

		events.add(Event{
			Type:    EventPhaseCompleted,
			Phase:   phase.Name,
			Message: fmt.Sprintf("%d succeeded, %d failed", pr.Succeeded(), pr.Failed()),
		})

		if pr.Succeeded() == 0 {
			failures := make(map[string]error, len(pr.Outputs))
			for _, o := range pr.Outputs {
				failures[o.AgentID] = o.Err
			}
			res.Status = models.WorkflowStatusAborted
			res.Err = &models.PhaseFailedError{
				WorkflowID: def.ID,
				Phase:      phase.Name,
				Index:      i,
				Failures:   failures,
			}
			break
		}

		for _, o := range pr.Outputs {
			if o.OK() {
				res.Context[contextKey(phase.Name, o.AgentID)] = o.Text
			}
		}
	}

	if res.Status == "" {
		res.Status = models.WorkflowStatusCompleted
		res.Final = aggregate(def, res.Phases[len(res.Phases)-1])
	}
	res.Duration = time.Since(res.StartedAt)
	if res.Err != nil {
		res.Error = res.Err.Error()
	}

	switch res.Status {
	case models.WorkflowStatusCompleted:
		events.add(Event{Type: EventRunCompleted})
		log.Info().
			Str("workflow", def.ID).
			Str("run", res.RunID).
			Dur("duration", res.Duration).
			Msg("Workflow completed")
	case models.WorkflowStatusAborted:
		events.add(Event{Type: EventRunAborted, Message: res.Error})
		log.Warn().
			Err(res.Err).
			Str("workflow", def.ID).
			Str("run", res.RunID).
			Msg("Workflow aborted")
	case models.WorkflowStatusCancelled:
		events.add(Event{Type: EventRunCancelled, Message: res.Error})
		log.Warn().
			Err(res.Err).
			Str("workflow", def.ID).
			Str("run", res.RunID).
			Msg("Workflow cancelled")
	}
	res.Events = events.list()
	e.metrics.WorkflowFinished(def.ID, string(res.Status), res.Duration)

	return res, res.Err
}

// runPhase esegue gli agenti di una fase in parallelo. Ogni goroutine
// restituisce nil: il fallimento di un agente non cancella gli altri.
func (e *Engine) runPhase(ctx context.Context, snap *registry.Snapshot, phase Phase, index int, task string, phaseCtx map[string]string, events *eventLog) PhaseResult {
	start := time.Now()
	outputs := make([]AgentOutput, len(phase.Agents))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	for i, id := range phase.Agents {
		i := i
		agent, _ := snap.Get(id)
		g.Go(func() error {
			outputs[i] = e.runAgent(ctx, agent, task, phaseCtx)

			o := outputs[i]
			if o.OK() {
				events.add(Event{Type: EventAgentCompleted, Phase: phase.Name, Agent: o.AgentID})
			} else {
				events.add(Event{Type: EventAgentFailed, Phase: phase.Name, Agent: o.AgentID, Message: o.Error})
			}
			return nil
		})
	}
	_ = g.Wait()

	return PhaseResult{
		Name:     phase.Name,
		Index:    index,
		Outputs:  outputs,
		Duration: time.Since(start),
	}
}

func (e *Engine) runAgent(ctx context.Context, agent models.Agent, task string, phaseCtx map[string]string) AgentOutput {
	out := AgentOutput{AgentID: agent.ID, AgentName: agent.Name}
	start := time.Now()

	gen, err := e.gen.Generate(ctx, agent, prompt.Build(agent, task, phaseCtx))
	out.Duration = time.Since(start)

	// Un risultato arrivato dopo la cancellazione viene scartato
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		out.Err = err
		out.Error = err.Error()
		var genErr *models.GenerationError
		if errors.As(err, &genErr) {
			out.Attempts = genErr.Attempts
		}
		log.Debug().
			Err(err).
			Str("agent", agent.ID).
			Msg("Agent failed in phase")
		return out
	}

	out.Text = gen.Text
	out.Provider = gen.Provider
	out.Attempts = gen.Attempts
	return out
}

// contextKey usa l'id: i nomi degli agenti non sono univoci nel registry
func contextKey(phase, agentID string) string {
	return phase + "/" + agentID
}

func cloneContext(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// aggregate produce l'output finale dall'ultima fase
func aggregate(def Definition, last PhaseResult) string {
	if def.Aggregation == AggregationSynthesis {
		for _, o := range last.Outputs {
			if o.AgentID == def.Synthesizer && o.OK() {
				return o.Text
			}
		}
		log.Warn().
			Str("workflow", def.ID).
			Str("synthesizer", def.Synthesizer).
			Msg("Synthesizer failed, falling back to concatenation")
	}
	return concat(last)
}

func concat(phase PhaseResult) string {
	var sections []string
	for _, o := range phase.Outputs {
		if !o.OK() {
			continue
		}
		sections = append(sections, "## "+o.AgentName+"\n\n"+strings.TrimSpace(o.Text))
	}
	return strings.Join(sections, "\n\n")
}
