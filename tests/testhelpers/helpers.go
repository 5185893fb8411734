package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/biodoia/goarcanea/pkg/database"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/google/uuid"
)

// TestDB crea un database sqlite in memoria già migrato
func TestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(&database.Config{
		Type:       "sqlite",
		Connection: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:   "silent",
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestAgent crea un agente valido con i campi minimi
func TestAgent(id, court string, frequency float64) models.Agent {
	return models.Agent{
		ID:        id,
		Name:      fmt.Sprintf("Test %s", id),
		Court:     court,
		Specialty: fmt.Sprintf("%s specialty", id),
		Frequency: frequency,
	}
}

// TestContext crea un context con timeout legato al test
func TestContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WaitFor attende finché la condizione è vera o scade il timeout
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("Timeout waiting for condition: %s", message)
}
