package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PromptRecord rappresenta un prompt salvato dall'utente
type PromptRecord struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	Name      string         `json:"name" gorm:"index;not null"`
	Content   string         `json:"content" gorm:"type:text"`
	Tags      datatypes.JSON `json:"tags"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BeforeCreate hook per generare l'id
func (p *PromptRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// TableName specifica il nome della tabella
func (PromptRecord) TableName() string {
	return "prompts"
}

// SetTags serializza i tag nella colonna JSON
func (p *PromptRecord) SetTags(tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	p.Tags = datatypes.JSON(data)
	return nil
}

// TagList restituisce i tag deserializzati
func (p *PromptRecord) TagList() []string {
	if len(p.Tags) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(p.Tags, &tags); err != nil {
		return nil
	}
	return tags
}

// ConfigEntry è una coppia chiave/valore di configurazione persistita
type ConfigEntry struct {
	Key       string    `json:"key" gorm:"primaryKey;size:191"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifica il nome della tabella
func (ConfigEntry) TableName() string {
	return "config_entries"
}
