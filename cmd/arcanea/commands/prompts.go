package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/biodoia/goarcanea/internal/orchestrator"
	"github.com/spf13/cobra"
)

// PromptsCmd rappresenta il comando prompts
var PromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage saved prompts",
	Example: `  # Save a prompt
  arcanea prompts save --name dragon --tags creature,fire "Describe an ancient dragon"

  # List saved prompts
  arcanea prompts list`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved prompts",
	RunE:  runPromptsList,
}

var promptsSaveCmd = &cobra.Command{
	Use:   "save [content...]",
	Short: "Save a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPromptsSave,
}

var (
	promptName string
	promptTags []string
	promptJSON bool
)

func init() {
	promptsListCmd.Flags().BoolVar(&promptJSON, "json", false, "Output as JSON")
	promptsSaveCmd.Flags().StringVar(&promptName, "name", "", "Prompt name (required)")
	promptsSaveCmd.Flags().StringSliceVar(&promptTags, "tags", nil, "Comma-separated tags")
	_ = promptsSaveCmd.MarkFlagRequired("name")

	PromptsCmd.AddCommand(promptsListCmd)
	PromptsCmd.AddCommand(promptsSaveCmd)
}

func runPromptsList(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	prompts, err := app.Service.Prompts(cmd.Context())
	if err != nil {
		return err
	}

	if promptJSON {
		return printJSON(prompts)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTAGS\tCREATED\tCONTENT")
	fmt.Fprintln(w, "--\t----\t----\t-------\t-------")
	for _, p := range prompts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.ID[:8],
			p.Name,
			strings.Join(p.TagList(), ","),
			p.CreatedAt.Format("2006-01-02 15:04"),
			truncate(p.Content, 60),
		)
	}
	return w.Flush()
}

func runPromptsSave(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, orchestrator.BootstrapOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.Service.SavePrompt(cmd.Context(), promptName, strings.Join(args, " "), promptTags)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Prompt '%s' saved (ID: %s)\n", promptName, id)
	return nil
}
