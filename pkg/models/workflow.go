package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowOptions contiene i modificatori opzionali di un workflow.
// I campi vuoti vengono omessi dal prompt, mai sostituiti con un default.
type WorkflowOptions struct {
	Theme string `json:"theme,omitempty"`
	Genre string `json:"genre,omitempty"`
	Tone  string `json:"tone,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// IsZero verifica se nessuna opzione è impostata
func (o WorkflowOptions) IsZero() bool {
	return o == WorkflowOptions{}
}

// WorkflowStatus è lo stato terminale di un'esecuzione
type WorkflowStatus string

const (
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusAborted   WorkflowStatus = "aborted"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// WorkflowRunRecord è la riga persistita di un'esecuzione di workflow
type WorkflowRunRecord struct {
	ID         string         `json:"id" gorm:"primaryKey;size:36"`
	WorkflowID string         `json:"workflow_id" gorm:"index;not null"`
	Task       string         `json:"task" gorm:"type:text"`
	Status     WorkflowStatus `json:"status" gorm:"index"`
	Final      string         `json:"final" gorm:"type:text"`
	Phases     datatypes.JSON `json:"phases"`
	Error      string         `json:"error"`
	DurationMs int64          `json:"duration_ms"`
	StartedAt  time.Time      `json:"started_at" gorm:"index"`
	CreatedAt  time.Time      `json:"created_at"`
}

// BeforeCreate hook per generare l'id
func (r *WorkflowRunRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TableName specifica il nome della tabella
func (WorkflowRunRecord) TableName() string {
	return "workflow_runs"
}
