package commands

import (
	"fmt"

	"github.com/biodoia/goarcanea/pkg/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// MigrateCmd rappresenta il comando migrate
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the tables for invocations, workflow runs, prompts and settings.`,
	Example: `  # Run migrations
  arcanea migrate

  # Run migrations with specific config
  arcanea migrate -c config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info().
		Str("type", cfg.Database.Type).
		Msg("Running database migrations")

	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("✓ Database migrations completed")
	return nil
}
