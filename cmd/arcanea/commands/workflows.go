package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/biodoia/goarcanea/internal/workflow"
	"github.com/biodoia/goarcanea/pkg/models"
	"github.com/spf13/cobra"
)

// WorkflowsCmd rappresenta il comando workflows
var WorkflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List and run multi-phase workflows",
	Example: `  # List the available workflows
  arcanea workflows list

  # Run a workflow with options
  arcanea workflows run spell-crafting "A ward against storms" --theme storm --tone solemn`,
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	RunE:  runWorkflowsList,
}

var workflowsShowCmd = &cobra.Command{
	Use:   "show [workflow-id]",
	Short: "Show the phases of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowsShow,
}

var workflowsRunCmd = &cobra.Command{
	Use:   "run [workflow-id] [task...]",
	Short: "Run a workflow",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runWorkflowsRun,
}

var (
	workflowsJSON    bool
	workflowsEvents  bool
	workflowsOptions models.WorkflowOptions
)

func init() {
	workflowsListCmd.Flags().BoolVar(&workflowsJSON, "json", false, "Output as JSON")
	workflowsShowCmd.Flags().BoolVar(&workflowsJSON, "json", false, "Output as JSON")

	workflowsRunCmd.Flags().StringVar(&workflowsOptions.Theme, "theme", "", "Theme modifier")
	workflowsRunCmd.Flags().StringVar(&workflowsOptions.Genre, "genre", "", "Genre modifier")
	workflowsRunCmd.Flags().StringVar(&workflowsOptions.Tone, "tone", "", "Tone modifier")
	workflowsRunCmd.Flags().StringVar(&workflowsOptions.Scope, "scope", "", "Scope modifier")
	workflowsRunCmd.Flags().BoolVar(&workflowsJSON, "json", false, "Output the full result as JSON")
	workflowsRunCmd.Flags().BoolVar(&workflowsEvents, "events", false, "Print the event log")

	WorkflowsCmd.AddCommand(workflowsListCmd)
	WorkflowsCmd.AddCommand(workflowsShowCmd)
	WorkflowsCmd.AddCommand(workflowsRunCmd)
}

func runWorkflowsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	list := app.Service.ListWorkflows()
	if workflowsJSON {
		return printJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tAGENTS\tPHASES\tDESCRIPTION")
	fmt.Fprintln(w, "--\t----\t------\t------\t-----------")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.ID, s.Name, s.AgentCount, s.PhaseCount, s.Description)
	}
	return w.Flush()
}

func runWorkflowsShow(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{SkipDatabase: true})
	if err != nil {
		return err
	}
	defer app.Close()

	def, err := app.Service.GetWorkflow(args[0])
	if err != nil {
		return err
	}

	if workflowsJSON {
		return printJSON(def)
	}

	fmt.Printf("%s (%s)\n", def.Name, def.ID)
	if def.Description != "" {
		fmt.Printf("  %s\n", def.Description)
	}
	fmt.Printf("  Aggregation: %s", def.Aggregation)
	if def.Synthesizer != "" {
		fmt.Printf(" (synthesizer: %s)", def.Synthesizer)
	}
	fmt.Println()
	for i, p := range def.Phases {
		fmt.Printf("  %d. %-14s %s\n", i+1, p.Name, strings.Join(p.Agents, ", "))
	}
	return nil
}

func runWorkflowsRun(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := app.Service.ExecuteWorkflow(ctx, args[0], strings.Join(args[1:], " "), workflowsOptions)
	if res == nil {
		return err
	}

	if workflowsJSON {
		if jsonErr := printJSON(res); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	printWorkflowResult(res)
	return err
}

func printWorkflowResult(res *workflow.Result) {
	for _, p := range res.Phases {
		fmt.Printf("Phase %d: %s (%d ok, %d failed, %s)\n", p.Index+1, p.Name, p.Succeeded(), p.Failed(), p.Duration.Round(time.Millisecond))
		for _, o := range p.Outputs {
			if o.OK() {
				fmt.Printf("  ✓ %-16s %s\n", o.AgentName, truncate(o.Text, 80))
			} else {
				fmt.Printf("  ✗ %-16s %s\n", o.AgentName, truncate(o.Error, 80))
			}
		}
	}

	if workflowsEvents {
		fmt.Println()
		fmt.Println("Events:")
		for _, ev := range res.Events {
			fmt.Printf("  %s  %-16s %-12s %-16s %s\n", ev.At.Format("15:04:05.000"), ev.Type, ev.Phase, ev.Agent, ev.Message)
		}
	}

	m := res.Metrics()
	fmt.Println()
	fmt.Printf("Status: %s  (%d/%d agents succeeded, %.0f%%, %s)\n",
		res.Status, m.Succeeded, m.AgentCalls, m.SuccessRate*100, m.Duration.Round(time.Millisecond))

	if res.Final != "" {
		fmt.Println()
		fmt.Println(res.Final)
	}
}
