// Package commands contiene i comandi cobra della CLI arcanea.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/biodoia/goarcanea/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// SetupLogger configura il logger globale dai flag --log-level, --verbose e --dev
func SetupLogger(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	verbose, _ := cmd.Flags().GetBool("verbose")
	dev, _ := cmd.Flags().GetBool("dev")

	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || logLevel == "" {
		level = zerolog.WarnLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	// I log vanno su stderr: stdout resta per l'output dei comandi
	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// I flag hanno la precedenza sul livello indicato nel file
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose && !cmd.Flags().Changed("log-level") && cfg.Monitoring.Logging.Level != "" {
		if level, err := zerolog.ParseLevel(cfg.Monitoring.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}
	return cfg, nil
}

// loadApp costruisce l'orchestratore dalla configurazione
func loadApp(cmd *cobra.Command, opts orchestrator.BootstrapOptions) (*orchestrator.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return orchestrator.Bootstrap(cmd.Context(), cfg, opts)
}

// signalContext restituisce un contesto cancellato da SIGINT/SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

func printJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
