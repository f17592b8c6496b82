package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	startFileID     string
	startTemplateID string
	startAssignee   string
	startRemarks    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a workflow on a file",
	Long: `Start routing a file through a workflow template. Only the file's
creator (or an administrator) may start a workflow, and a file can have at
most one active workflow.

Examples:
  efilingctl start --file <file-id> --template <template-id>
  efilingctl start --file <file-id> --template <template-id> --assignee <user-id> --remarks "urgent"`,
	Run: func(cmd *cobra.Command, args []string) {
		fileID, err := parseID("file id", startFileID)
		if err != nil {
			fail("%v", err)
		}
		templateID, err := parseID("template id", startTemplateID)
		if err != nil {
			fail("%v", err)
		}

		var assignee *uuid.UUID
		if startAssignee != "" {
			id, err := parseID("assignee id", startAssignee)
			if err != nil {
				fail("%v", err)
			}
			assignee = &id
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		wf, err := newClient().StartWorkflow(ctx, fileID, templateID, assignee, startRemarks)
		if err != nil {
			failAPI("Failed to start workflow", err)
		}

		if emitJSON(wf) {
			return
		}

		fmt.Println("✅ Workflow started")
		fmt.Printf("Workflow:     %s\n", wf.ID)
		fmt.Printf("Stage:        %s\n", wf.CurrentStageID)
		fmt.Printf("Assignee:     %s\n", optionalID(wf.CurrentAssigneeID))
		if wf.SLADeadline != nil {
			fmt.Printf("SLA due:      %s\n", wf.SLADeadline.Format("2006-01-02 15:04"))
		}
		fmt.Println("\n📖 Next steps:")
		fmt.Printf("  efilingctl workflow %s\n", wf.ID)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startFileID, "file", "", "File ID (required)")
	startCmd.Flags().StringVar(&startTemplateID, "template", "", "Workflow template ID (required)")
	startCmd.Flags().StringVar(&startAssignee, "assignee", "", "Assign the first stage to this user instead of resolving by role")
	startCmd.Flags().StringVar(&startRemarks, "remarks", "", "Remarks recorded on the initial movement")
	startCmd.MarkFlagRequired("file")
	startCmd.MarkFlagRequired("template")
}
