package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/spf13/cobra"
)

// ProvidersCmd rappresenta il comando providers
var ProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured generation providers",
	Example: `  # List providers
  arcanea providers list

  # Check connectivity
  arcanea providers health`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	RunE:  runProvidersList,
}

var providersHealthCmd = &cobra.Command{
	Use:   "health [provider...]",
	Short: "Check provider connectivity",
	RunE:  runProvidersHealth,
}

var healthTimeout time.Duration

func init() {
	providersHealthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "Health check timeout")

	ProvidersCmd.AddCommand(providersListCmd)
	ProvidersCmd.AddCommand(providersHealthCmd)
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	table := app.Router.Table()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tMODEL\tDEFAULT")
	fmt.Fprintln(w, "----\t----\t-----\t-------")
	for _, name := range app.Providers.List() {
		md, _ := app.Providers.Metadata(name)
		def := ""
		if name == table.DefaultProvider() {
			def = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, md.Type, md.Model, def)
	}
	return w.Flush()
}

func runProvidersHealth(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	ctx, cancelTimeout := contextWithTimeout(ctx, healthTimeout)
	defer cancelTimeout()

	names := app.Providers.List()
	if len(args) > 0 {
		for _, name := range args {
			if _, err := app.Providers.Get(name); err != nil {
				return err
			}
		}
		names = args
	}

	results := app.Providers.HealthCheck(ctx)
	failed := 0
	for _, name := range names {
		err, checked := results[name]
		switch {
		case !checked:
			fmt.Printf("  -  %s (no health check)\n", name)
		case err != nil:
			failed++
			fmt.Printf("  ✗ %s: %v\n", name, err)
		default:
			fmt.Printf("  ✓ %s\n", name)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d providers unhealthy", failed)
	}
	return nil
}
