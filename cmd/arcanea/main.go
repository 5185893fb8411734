package main

import (
	"fmt"
	"os"

	"github.com/biodoia/goarcanea/cmd/arcanea/commands"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arcanea",
		Short: "Arcanea - agent orchestration core",
		Long: `Arcanea - agent orchestration core

Invokes the 64 specialized agents of the eight courts against configured
LLM providers, and runs multi-phase creative workflows where each phase
builds on the outputs of the previous one.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		PersistentPreRunE: commands.SetupLogger,
		SilenceUsage:      true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringP("log-level", "l", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().Bool("dev", true, "Pretty console logging instead of JSON")

	rootCmd.AddCommand(commands.AgentsCmd)
	rootCmd.AddCommand(commands.InvokeCmd)
	rootCmd.AddCommand(commands.WorkflowsCmd)
	rootCmd.AddCommand(commands.RouteCmd)
	rootCmd.AddCommand(commands.ProvidersCmd)
	rootCmd.AddCommand(commands.PromptsCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.MigrateCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Arcanea version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
