package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// InvokeCmd rappresenta il comando invoke
var InvokeCmd = &cobra.Command{
	Use:   "invoke [agent-id] [task...]",
	Short: "Invoke a single agent",
	Long: `Build the agent prompt for a task, route it to the configured provider
chain and print the response. The invocation is stored when a database is
configured.`,
	Example: `  # Ask an agent
  arcanea invoke flow "Write the opening of a sea story"

  # Pass context entries
  arcanea invoke depth "Describe the hero's fear" --context setting="flooded city"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runInvoke,
}

var (
	invokeContext []string
	invokeJSON    bool
	invokeNoStore bool
)

func init() {
	InvokeCmd.Flags().StringArrayVar(&invokeContext, "context", nil, "Context entry as key=value (repeatable)")
	InvokeCmd.Flags().BoolVar(&invokeJSON, "json", false, "Output as JSON")
	InvokeCmd.Flags().BoolVar(&invokeNoStore, "no-store", false, "Do not persist the invocation")
}

func runInvoke(cmd *cobra.Command, args []string) error {
	taskCtx, err := parseContext(invokeContext)
	if err != nil {
		return err
	}

	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: invokeNoStore})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	result, err := app.Service.InvokeAgent(ctx, args[0], strings.Join(args[1:], " "), taskCtx)
	if result == nil {
		return err
	}

	var storageErr *models.StorageError
	if errors.As(err, &storageErr) {
		log.Warn().Err(err).Msg("Response not persisted")
	}

	if invokeJSON {
		return printJSON(result)
	}

	fmt.Printf("%s (%s, %s) via %s in %s\n\n", result.AgentName, result.Court, result.Specialty, result.Provider, result.Duration.Round(time.Millisecond))
	fmt.Println(result.Response)
	return nil
}

func parseContext(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		key, value, ok := strings.Cut(e, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", e)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}
