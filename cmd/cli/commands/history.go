package commands

import (
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/spf13/cobra"
)

var historyWorkflows bool

var historyCmd = &cobra.Command{
	Use:   "history <file-id>",
	Short: "Show the movement history of a file",
	Long: `Show the custody trail of a file: every movement oldest first, or with
--workflows every workflow the file has been routed through, newest first.

Examples:
  efilingctl history <file-id>
  efilingctl history <file-id> --workflows`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fileID, err := parseID("file id", args[0])
		if err != nil {
			fail("%v", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()
		client := newClient()

		if historyWorkflows {
			workflows, err := client.FileWorkflows(ctx, fileID)
			if err != nil {
				failAPI("Failed to list workflows", err)
			}
			if emitJSON(workflows) {
				return
			}
			printWorkflowList(workflows)
			return
		}

		movements, err := client.FileHistory(ctx, fileID)
		if err != nil {
			failAPI("Failed to get file history", err)
		}
		if emitJSON(movements) {
			return
		}
		printMovements(movements)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyWorkflows, "workflows", false, "List workflows instead of movements")
}

func printMovements(movements []models.FileMovement) {
	if len(movements) == 0 {
		fmt.Println("📭 No movements recorded for this file")
		return
	}

	fmt.Printf("📋 %d movement(s):\n\n", len(movements))
	fmt.Println("┌──────────────────┬───────────┬──────────┬──────────┬──────────────────────────────┐")
	fmt.Println("│ When             │ Action    │ From     │ To       │ Remarks                      │")
	fmt.Println("├──────────────────┼───────────┼──────────┼──────────┼──────────────────────────────┤")
	for _, m := range movements {
		from := optionalID(m.FromUserID)
		if m.FromRole != nil {
			from = *m.FromRole
		}
		fmt.Printf("│ %-16s │ %-9s │ %-8s │ %-8s │ %-28s │\n",
			m.CreatedAt.Format("2006-01-02 15:04"),
			m.ActionType,
			truncate(from, 8),
			optionalID(m.ToUserID),
			truncate(stringOr(m.Remarks, ""), 28),
		)
	}
	fmt.Println("└──────────────────┴───────────┴──────────┴──────────┴──────────────────────────────┘")
}

func printWorkflowList(workflows []models.WorkflowInstance) {
	if len(workflows) == 0 {
		fmt.Println("📭 No workflows found for this file")
		fmt.Println("\n💡 Start one:")
		fmt.Println("  efilingctl start --file <file-id> --template <template-id>")
		return
	}

	fmt.Printf("📋 %d workflow(s):\n\n", len(workflows))
	for _, wf := range workflows {
		fmt.Printf("  %s  %-14s started %s\n", wf.ID, workflowStatusLabel(wf.Status), wf.CreatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println("\n📖 View details:")
	fmt.Println("  efilingctl workflow <workflow-id>")
}
