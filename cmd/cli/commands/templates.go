package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/davidmoltin/efiling-workflows/internal/seeds"
	"github.com/davidmoltin/efiling-workflows/internal/validators"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect and validate workflow templates",
	Long: `Work with workflow templates.

Examples:
  efilingctl templates list
  efilingctl templates validate tender.json`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in templates installed by 'efilingctl seed'",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		templates := seeds.DefaultTemplates()
		for i := range templates {
			templates[i].ID = seeds.StableID("template", templates[i].Code)
		}
		if emitJSON(templates) {
			return
		}

		fmt.Println("📚 Built-in templates")
		fmt.Println("═══════════════════════════════════════════════════════════")
		for _, tmpl := range templates {
			fmt.Printf("\n%s  %s\n", tmpl.Code, tmpl.Name)
			fmt.Printf("  id: %s\n", tmpl.ID)
			printStages(tmpl.Stages)
		}
	},
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate <file.json>",
	Short: "Validate a template definition",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fail("Failed to read file: %v", err)
		}

		var tmpl models.WorkflowTemplate
		if err := json.Unmarshal(data, &tmpl); err != nil {
			fail("Invalid JSON: %v", err)
		}

		if err := validators.NewTemplateValidator().Validate(&tmpl); err != nil {
			fail("Template is invalid: %v", err)
		}

		tmpl.SortStages()
		fmt.Printf("✅ Template %s is valid (%d stages)\n", tmpl.Code, len(tmpl.Stages))
		printStages(tmpl.Stages)
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesValidateCmd)
}

func printStages(stages []models.StageDefinition) {
	for _, s := range stages {
		fmt.Printf("  %d. %-24s role=%-5s dept=%-6s sla=%dh\n",
			s.Order, s.Name, s.RequiredRole, stringOr(s.RequiredDepartment, "-"), s.SLAHours)
	}
}
