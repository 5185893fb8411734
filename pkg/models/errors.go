package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound corrisponde a qualsiasi NotFoundError tramite errors.Is
	ErrNotFound = errors.New("not found")

	// ErrAllAgentsFailed viene usato come causa di un PhaseFailedError
	ErrAllAgentsFailed = errors.New("every agent in the phase failed")
)

// NotFoundKind identifica il tipo di entità mancante
type NotFoundKind string

const (
	NotFoundAgent    NotFoundKind = "agent"
	NotFoundWorkflow NotFoundKind = "workflow"
	NotFoundProvider NotFoundKind = "provider"
)

// NotFoundError indica un id sconosciuto. È sempre recuperabile.
type NotFoundError struct {
	Kind NotFoundKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Is permette errors.Is(err, ErrNotFound)
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// GenerationError indica che l'intera catena di provider è stata esaurita
type GenerationError struct {
	AgentID   string
	Providers []string
	Attempts  int
	Cause     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for agent %s after %d attempts (providers: %s): %v",
		e.AgentID, e.Attempts, strings.Join(e.Providers, ","), e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// PhaseFailedError indica che tutti gli agenti di una fase hanno fallito
type PhaseFailedError struct {
	WorkflowID string
	Phase      string
	Index      int
	Failures   map[string]error
}

func (e *PhaseFailedError) Error() string {
	return fmt.Sprintf("workflow %s aborted: phase %d (%s): %d agents failed",
		e.WorkflowID, e.Index+1, e.Phase, len(e.Failures))
}

func (e *PhaseFailedError) Unwrap() error {
	return ErrAllAgentsFailed
}

// RegistryLoadError indica un catalogo agenti inutilizzabile
type RegistryLoadError struct {
	Source string
	Cause  error
}

func (e *RegistryLoadError) Error() string {
	return fmt.Sprintf("registry load from %s: %v", e.Source, e.Cause)
}

func (e *RegistryLoadError) Unwrap() error {
	return e.Cause
}

// StorageError incapsula un fallimento del collaboratore di persistenza
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// ConfigError indica una definizione incoerente (workflow, routing)
type ConfigError struct {
	Subject string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %s", e.Subject, e.Reason)
}

// IsNotFound è un helper per errors.Is(err, ErrNotFound)
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
