package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/biodoia/goarcanea/internal/prompt"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/spf13/cobra"
)

// AgentsCmd rappresenta il comando agents
var AgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Browse the agent catalog",
	Long:  `List and inspect the agents of the registry, grouped in eight courts.`,
	Example: `  # List all agents
  arcanea agents list

  # List the agents of one court
  arcanea agents list --court Draconia

  # Show a single agent
  arcanea agents show flow`,
}

var agentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE:  runAgentsList,
}

var agentsShowCmd = &cobra.Command{
	Use:   "show [agent-id]",
	Short: "Show a single agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsShow,
}

var (
	agentsCourt   string
	agentsElement string
	agentsJSON    bool
)

func init() {
	agentsListCmd.Flags().StringVar(&agentsCourt, "court", "", "Filter by court")
	agentsListCmd.Flags().StringVar(&agentsElement, "element", "", "Filter by element")
	agentsListCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output as JSON")
	agentsShowCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output as JSON")

	AgentsCmd.AddCommand(agentsListCmd)
	AgentsCmd.AddCommand(agentsShowCmd)
}

func runAgentsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Registry.Snapshot()
	var agents []models.Agent
	switch {
	case agentsCourt != "":
		agents = snap.ByCourt(agentsCourt)
	case agentsElement != "":
		agents = snap.ByElement(agentsElement)
	default:
		agents = snap.All()
	}

	if agentsJSON {
		return printJSON(agents)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOURT\tELEMENT\tFREQUENCY\tSPECIALTY")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t---------\t---------")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Name,
			a.Court,
			a.Element,
			prompt.FormatFrequency(a.Frequency),
			a.Specialty,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d agents (registry version %d)\n", len(agents), snap.Version())
	return nil
}

func runAgentsShow(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	agent, err := app.Service.GetAgent(args[0])
	if err != nil {
		return err
	}

	if agentsJSON {
		return printJSON(agent)
	}

	fmt.Printf("%s (%s)\n", agent.Name, agent.ID)
	fmt.Printf("  Court:        %s (%s)\n", agent.Court, agent.CourtType)
	fmt.Printf("  Element:      %s\n", agent.Element)
	fmt.Printf("  Frequency:    %s\n", prompt.FormatFrequency(agent.Frequency))
	fmt.Printf("  Specialty:    %s\n", agent.Specialty)
	if agent.Personality != "" {
		fmt.Printf("  Personality:  %s\n", agent.Personality)
	}
	if len(agent.Capabilities) > 0 {
		fmt.Printf("  Capabilities: %s\n", strings.Join(agent.Capabilities, ", "))
	}
	fmt.Printf("  Route:        %s\n", strings.Join(app.Router.Route(agent), " -> "))
	return nil
}
