package commands

import (
	"fmt"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Inspect and validate the configuration file, and read or write the
persisted key/value settings stored in the database.`,
	Example: `  # Show the loaded configuration
  arcanea config show

  # Validate a configuration file
  arcanea config validate -c configs/config.yaml

  # Persisted settings
  arcanea config set ui.theme dark
  arcanea config get ui.theme`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Read a persisted setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Write a persisted setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Le chiavi API non vengono mai stampate
	for i := range cfg.Providers {
		if cfg.Providers[i].APIKey != "" {
			cfg.Providers[i].APIKey = "********"
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# =====================")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Println("✗ Failed to load configuration")
		return err
	}
	fmt.Println("✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Configuration validation failed")
		return err
	}

	// Costruisce anche routing e workflow per verificare i riferimenti incrociati
	app, err := orchestrator.Bootstrap(cmd.Context(), cfg, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		fmt.Println("✗ Routing or workflow definitions are invalid")
		return err
	}
	defer app.Close()

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Database:   %s (%s)\n", cfg.Database.Type, cfg.Database.Connection)
	fmt.Printf("  Agents:     %d\n", app.Registry.Count())
	fmt.Printf("  Workflows:  %d\n", len(app.Service.ListWorkflows()))
	fmt.Printf("  Providers:  %d (default: %s)\n", len(cfg.Providers), cfg.Routing.DefaultProvider)
	fmt.Printf("  Rules:      %d\n", len(cfg.Routing.Rules))
	fmt.Printf("  Cache:      %v\n", cfg.Routing.Cache.Enabled)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	value, ok, err := app.Service.Config(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("setting not found: %s", args[0])
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Service.SetConfig(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("✓ %s = %s\n", args[0], args[1])
	return nil
}
