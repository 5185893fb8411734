package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentInvocationResult è il risultato immutabile di una singola invocazione.
// I campi identità dell'agente sono copiati al momento della chiamata, così
// modifiche successive al catalogo non alterano lo storico.
type AgentInvocationResult struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agent_id"`
	AgentName string        `json:"agent_name"`
	Court     string        `json:"court"`
	Specialty string        `json:"specialty"`
	Frequency float64       `json:"frequency"`
	Task      string        `json:"task"`
	Response  string        `json:"response"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewInvocationResult crea un risultato con id generato e snapshot dell'agente
func NewInvocationResult(agent Agent, task, response, provider, model string, duration time.Duration) *AgentInvocationResult {
	return &AgentInvocationResult{
		ID:        uuid.New().String(),
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Court:     agent.Court,
		Specialty: agent.Specialty,
		Frequency: agent.Frequency,
		Task:      task,
		Response:  response,
		Provider:  provider,
		Model:     model,
		Duration:  duration,
		Timestamp: time.Now().UTC(),
	}
}

// InvocationRecord è la riga persistita di un'invocazione
type InvocationRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	AgentID    string    `json:"agent_id" gorm:"index;not null"`
	AgentName  string    `json:"agent_name"`
	Court      string    `json:"court"`
	Task       string    `json:"task" gorm:"type:text"`
	Response   string    `json:"response" gorm:"type:text"`
	Provider   string    `json:"provider"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp" gorm:"index;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hook per generare id e timestamp
func (r *InvocationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return nil
}

// TableName specifica il nome della tabella
func (InvocationRecord) TableName() string {
	return "invocations"
}

// Record converte il risultato nella riga persistita
func (r *AgentInvocationResult) Record() *InvocationRecord {
	return &InvocationRecord{
		ID:         r.ID,
		AgentID:    r.AgentID,
		AgentName:  r.AgentName,
		Court:      r.Court,
		Task:       r.Task,
		Response:   r.Response,
		Provider:   r.Provider,
		DurationMs: r.Duration.Milliseconds(),
		Timestamp:  r.Timestamp,
	}
}
