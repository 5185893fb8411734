package database

import (
	"context"
	"errors"
	"strings"

	"github.com/biodoia/goarcanea/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &models.StorageError{Op: op, Cause: err}
}

// StoreInvocation salva il risultato di un'invocazione
func (db *DB) StoreInvocation(ctx context.Context, result *models.AgentInvocationResult) error {
	if result == nil {
		return storageErr("store invocation", errors.New("nil result"))
	}
	return storageErr("store invocation", db.WithContext(ctx).Create(result.Record()).Error)
}

// RecentInvocations restituisce le invocazioni più recenti, opzionalmente filtrate per agente
func (db *DB) RecentInvocations(ctx context.Context, agentID string, limit int) ([]models.InvocationRecord, error) {
	var records []models.InvocationRecord
	q := db.WithContext(ctx).Order("timestamp DESC")
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, storageErr("recent invocations", err)
	}
	return records, nil
}

// StorePrompt salva un prompt e ne restituisce l'id
func (db *DB) StorePrompt(ctx context.Context, name, content string, tags []string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", storageErr("store prompt", errors.New("prompt name is required"))
	}

	record := &models.PromptRecord{Name: name, Content: content}
	if err := record.SetTags(tags); err != nil {
		return "", storageErr("store prompt", err)
	}
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return "", storageErr("store prompt", err)
	}
	return record.ID, nil
}

// GetPrompts restituisce tutti i prompt salvati, i più recenti prima
func (db *DB) GetPrompts(ctx context.Context) ([]models.PromptRecord, error) {
	var prompts []models.PromptRecord
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&prompts).Error; err != nil {
		return nil, storageErr("get prompts", err)
	}
	return prompts, nil
}

// GetConfig legge un valore di configurazione persistito
func (db *DB) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var entry models.ConfigEntry
	err := db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get config", err)
	}
	return entry.Value, true, nil
}

// SetConfig scrive (o sovrascrive) un valore di configurazione
func (db *DB) SetConfig(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return storageErr("set config", errors.New("config key is required"))
	}
	entry := models.ConfigEntry{Key: key, Value: value}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	return storageErr("set config", err)
}

// StoreWorkflowRun salva l'esito di un'esecuzione di workflow
func (db *DB) StoreWorkflowRun(ctx context.Context, run *models.WorkflowRunRecord) error {
	if run == nil {
		return storageErr("store workflow run", errors.New("nil run"))
	}
	return storageErr("store workflow run", db.WithContext(ctx).Create(run).Error)
}

// RecentWorkflowRuns restituisce le esecuzioni più recenti
func (db *DB) RecentWorkflowRuns(ctx context.Context, limit int) ([]models.WorkflowRunRecord, error) {
	var runs []models.WorkflowRunRecord
	q := db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, storageErr("recent workflow runs", err)
	}
	return runs, nil
}
