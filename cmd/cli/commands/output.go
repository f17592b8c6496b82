package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/davidmoltin/efiling-workflows/internal/cli"
	"github.com/davidmoltin/efiling-workflows/internal/models"
)

// fail prints an error and exits
func fail(format string, args ...interface{}) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}

// failAPI reports a client error, with a hint for the common status codes
func failAPI(what string, err error) {
	fmt.Printf("❌ %s: %v\n", what, err)
	var apiErr *cli.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 401:
			fmt.Println("💡 Tip: Set a token with --api-token or EFILING_API_TOKEN (see 'efilingctl token')")
		case 403:
			fmt.Println("💡 Tip: The file is assigned to someone else, or your role cannot act on this stage")
		case 409:
			fmt.Println("💡 Tip: The workflow changed underneath you; re-read it and retry")
		}
	}
	os.Exit(1)
}

// emitJSON prints v when --json is set and reports whether it did
func emitJSON(v interface{}) bool {
	if !outputJSON {
		return false
	}
	if err := printJSON(v); err != nil {
		fail("Failed to encode output: %v", err)
	}
	return true
}

func workflowStatusLabel(status models.WorkflowStatus) string {
	switch status {
	case models.WorkflowStatusActive:
		return "🏃 Active"
	case models.WorkflowStatusCompleted:
		return "✅ Completed"
	case models.WorkflowStatusRejected:
		return "❌ Rejected"
	case models.WorkflowStatusReturned:
		return "↩️  Returned"
	case models.WorkflowStatusEscalated:
		return "⬆️  Escalated"
	default:
		return string(status)
	}
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
