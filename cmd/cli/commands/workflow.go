package commands

import (
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/spf13/cobra"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow <workflow-id>",
	Short: "Show a workflow with its stage visits and actions",
	Long: `Show a workflow instance, every stage visit it has made and the
actions taken on it, oldest first.

Examples:
  efilingctl workflow 3f2b...
  efilingctl workflow 3f2b... --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID("workflow id", args[0])
		if err != nil {
			fail("%v", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		detail, err := newClient().GetWorkflow(ctx, id)
		if err != nil {
			failAPI("Failed to get workflow", err)
		}

		if emitJSON(detail) {
			return
		}
		printWorkflowDetail(detail)
	},
}

func init() {
	rootCmd.AddCommand(workflowCmd)
}

func printWorkflowDetail(detail *models.WorkflowDetail) {
	wf := detail.Workflow

	fmt.Println("📊 Workflow Details")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("ID:           %s\n", wf.ID)
	fmt.Printf("File:         %s\n", wf.FileID)
	fmt.Printf("Template:     %s\n", wf.TemplateID)
	fmt.Printf("Status:       %s\n", workflowStatusLabel(wf.Status))
	fmt.Printf("Stage:        %s\n", wf.CurrentStageID)
	fmt.Printf("Assignee:     %s\n", optionalID(wf.CurrentAssigneeID))
	if wf.SLADeadline != nil {
		due := wf.SLADeadline.Format("2006-01-02 15:04")
		if wf.IsSLABreached(time.Now()) {
			due += " (overdue)"
		}
		fmt.Printf("SLA due:      %s\n", due)
	}
	fmt.Printf("Started:      %s\n", wf.CreatedAt.Format("2006-01-02 15:04:05"))
	if wf.CompletedAt != nil {
		fmt.Printf("Completed:    %s\n", wf.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\n🪜 Stage visits:")
	fmt.Println("───────────────────────────────────────────────────────────")
	if len(detail.Stages) == 0 {
		fmt.Println("No stage visits recorded")
	}
	for _, si := range detail.Stages {
		finished := "-"
		if si.CompletedAt != nil {
			finished = si.CompletedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("  %s  %-12s assignee=%s  started=%s  finished=%s\n",
			shortID(si.StageID), si.Status, optionalID(si.AssignedTo),
			si.StartedAt.Format("2006-01-02 15:04"), finished)
	}

	fmt.Println("\n📝 Actions:")
	fmt.Println("───────────────────────────────────────────────────────────")
	if len(detail.Actions) == 0 {
		fmt.Println("No actions yet")
	}
	for _, a := range detail.Actions {
		remarks, _ := a.ActionData.String("remarks")
		fmt.Printf("  %s  %-9s by %s  %s\n",
			a.PerformedAt.Format("2006-01-02 15:04"), a.ActionType, shortID(a.PerformedBy), remarks)
	}
}
