package models

import (
	"strings"
)

// CourtType categorizza le corti del catalogo
type CourtType string

const (
	CourtTypeElemental   CourtType = "elemental"
	CourtTypeIntegration CourtType = "integration"
	CourtTypeMaster      CourtType = "master"
)

// Agent rappresenta una persona specializzata del catalogo.
//
// Un Agent è immutabile una volta caricato: il registry ne è l'unico
// proprietario e gli altri componenti ne ricevono copie per valore.
type Agent struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Court     string `json:"court" yaml:"court"`
	Specialty string `json:"specialty" yaml:"specialty"`

	// Frequency in Hz, usata solo per il flavour del prompt e per il routing
	Frequency float64 `json:"frequency" yaml:"frequency"`

	Element      string    `json:"element,omitempty" yaml:"element,omitempty"`
	CourtType    CourtType `json:"court_type,omitempty" yaml:"court_type,omitempty"`
	Personality  string    `json:"personality,omitempty" yaml:"personality,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// HasCapability verifica se l'agente dichiara una capability
func (a Agent) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if strings.EqualFold(c, capability) {
			return true
		}
	}
	return false
}

// Clone restituisce una copia indipendente dell'agente
func (a Agent) Clone() Agent {
	out := a
	if a.Capabilities != nil {
		out.Capabilities = append([]string(nil), a.Capabilities...)
	}
	return out
}
