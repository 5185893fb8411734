package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/biodoia/goarcanea/internal/router"
	"github.com/spf13/cobra"
)

// RouteCmd rappresenta il comando route
var RouteCmd = &cobra.Command{
	Use:   "route [agent-id...]",
	Short: "Show the provider chain resolved for agents",
	Long: `Resolve the routing table for one or more agents without calling any
provider. With no arguments every agent of the catalog is shown.`,
	Example: `  # Route for a single agent
  arcanea route flow

  # Route for the whole catalog
  arcanea route`,
	RunE: runRoute,
}

var routeJSON bool

func init() {
	RouteCmd.Flags().BoolVar(&routeJSON, "json", false, "Output as JSON")
}

type routeRow struct {
	Agent string `json:"agent"`
	router.Resolution
}

func runRoute(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	table := app.Router.Table()

	agents := app.Service.ListAgents()
	if len(args) > 0 {
		agents = agents[:0]
		for _, id := range args {
			agent, err := app.Service.GetAgent(id)
			if err != nil {
				return err
			}
			agents = append(agents, agent)
		}
	}

	rows := make([]routeRow, 0, len(agents))
	for _, a := range agents {
		rows = append(rows, routeRow{Agent: a.ID, Resolution: table.Resolve(a)})
	}

	if routeJSON {
		return printJSON(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tRULE\tCHAIN")
	fmt.Fprintln(w, "-----\t----\t-----")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Agent, r.Rule, strings.Join(r.Chain, " -> "))
	}
	return w.Flush()
}
