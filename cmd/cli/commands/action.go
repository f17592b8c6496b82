package commands

import (
	"fmt"
	"strings"

	"github.com/davidmoltin/efiling-workflows/internal/engine"
	"github.com/davidmoltin/efiling-workflows/internal/models"
	"github.com/spf13/cobra"
)

var (
	actionRemarks      string
	actionReason       string
	actionNextAssignee string
)

func actionNames() string {
	names := make([]string, 0, len(models.ActionTypes))
	for _, a := range models.ActionTypes {
		names = append(names, strings.ToLower(string(a)))
	}
	return strings.Join(names, ", ")
}

var actionCmd = &cobra.Command{
	Use:   "action <workflow-id> <stage-id> <action>",
	Short: "Act on the current stage of a workflow",
	Long: fmt.Sprintf(`Apply an action to the workflow's current stage. Valid actions: %s.

Examples:
  efilingctl action <workflow-id> <stage-id> approve --remarks "estimate verified"
  efilingctl action <workflow-id> <stage-id> return --reason "attach site photos"
  efilingctl action <workflow-id> <stage-id> escalate --next-assignee <user-id>`, actionNames()),
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		workflowID, err := parseID("workflow id", args[0])
		if err != nil {
			fail("%v", err)
		}
		stageID, err := parseID("stage id", args[1])
		if err != nil {
			fail("%v", err)
		}
		action, err := models.ParseActionType(args[2])
		if err != nil {
			fail("%v (valid: %s)", err, actionNames())
		}

		details := models.JSONB{}
		if actionRemarks != "" {
			details[engine.DetailRemarks] = actionRemarks
		}
		if actionReason != "" {
			details[engine.DetailReason] = actionReason
		}
		if actionNextAssignee != "" {
			next, err := parseID("next assignee", actionNextAssignee)
			if err != nil {
				fail("%v", err)
			}
			details[engine.DetailNextAssignee] = next.String()
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		result, err := newClient().PerformAction(ctx, workflowID, stageID, action, details)
		if err != nil {
			failAPI("Action failed", err)
		}

		if emitJSON(result) {
			return
		}

		fmt.Printf("✅ %s recorded: %s\n", action, result.Result)
		fmt.Printf("Workflow:     %s\n", workflowStatusLabel(result.WorkflowStatus))
		if result.NextStageID != nil {
			fmt.Printf("Next stage:   %s\n", *result.NextStageID)
		}
		fmt.Printf("Movement:     %s\n", result.MovementID)
	},
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.Flags().StringVar(&actionRemarks, "remarks", "", "Remarks recorded on the action and movement")
	actionCmd.Flags().StringVar(&actionReason, "reason", "", "Reason, used as remarks when --remarks is empty")
	actionCmd.Flags().StringVar(&actionNextAssignee, "next-assignee", "", "Override the assignee of the next stage")
}
