package workflow

import (
	"sync"
	"time"

	"github.com/biodoia/goarcanea/pkg/models"
)

// EventType classifica gli eventi di un'esecuzione
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventPhaseStarted   EventType = "phase_started"
	EventAgentCompleted EventType = "agent_completed"
	EventAgentFailed    EventType = "agent_failed"
	EventPhaseCompleted EventType = "phase_completed"
	EventRunCompleted   EventType = "run_completed"
	EventRunAborted     EventType = "run_aborted"
	EventRunCancelled   EventType = "run_cancelled"
)

// Event è una voce del log di esecuzione
type Event struct {
	Type    EventType `json:"type"`
	Phase   string    `json:"phase,omitempty"`
	Agent   string    `json:"agent,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// AgentOutput è l'esito di un agente in una fase
type AgentOutput struct {
	AgentID   string        `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	Text      string        `json:"text,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// OK indica se l'agente ha prodotto un output
func (o AgentOutput) OK() bool {
	return o.Err == nil
}

// PhaseResult raccoglie gli esiti di una fase in ordine di dichiarazione
type PhaseResult struct {
	Name     string        `json:"name"`
	Index    int           `json:"index"`
	Outputs  []AgentOutput `json:"outputs"`
	Duration time.Duration `json:"duration"`
}

// Succeeded conta gli agenti riusciti
func (p PhaseResult) Succeeded() int {
	n := 0
	for _, o := range p.Outputs {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed conta gli agenti falliti
func (p PhaseResult) Failed() int {
	return len(p.Outputs) - p.Succeeded()
}

// Result è l'esito di un'esecuzione. Viene sempre restituito per gli stati
// terminali; Err è valorizzato per aborted e cancelled.
type Result struct {
	RunID           string                 `json:"run_id"`
	WorkflowID      string                 `json:"workflow_id"`
	Task            string                 `json:"task"`
	Options         models.WorkflowOptions `json:"options"`
	Status          models.WorkflowStatus  `json:"status"`
	Phases          []PhaseResult          `json:"phases"`
	Context         map[string]string      `json:"context"`
	Final           string                 `json:"final,omitempty"`
	Events          []Event                `json:"events"`
	RegistryVersion uint64                 `json:"registry_version"`
	StartedAt       time.Time              `json:"started_at"`
	Duration        time.Duration          `json:"duration"`
	Err             error                  `json:"-"`
	Error           string                 `json:"error,omitempty"`
}

// RunMetrics è un riepilogo numerico di un'esecuzione
type RunMetrics struct {
	Phases      int           `json:"phases"`
	AgentCalls  int           `json:"agent_calls"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	Duration    time.Duration `json:"duration"`
}

// Metrics calcola il riepilogo dell'esecuzione
func (r *Result) Metrics() RunMetrics {
	m := RunMetrics{Phases: len(r.Phases), Duration: r.Duration}
	for _, p := range r.Phases {
		m.AgentCalls += len(p.Outputs)
		m.Succeeded += p.Succeeded()
	}
	m.Failed = m.AgentCalls - m.Succeeded
	if m.AgentCalls > 0 {
		m.SuccessRate = float64(m.Succeeded) / float64(m.AgentCalls)
	}
	return m
}

// eventLog accumula eventi da goroutine diverse
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) list() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}
