package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	notificationsUnread bool
	notificationsLimit  int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "List your notifications",
	Long: `List the notifications addressed to the authenticated user, newest first.

Examples:
  efilingctl notifications --unread
  efilingctl notifications read <notification-id>`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		items, err := newClient().Notifications(ctx, notificationsUnread, notificationsLimit)
		if err != nil {
			failAPI("Failed to list notifications", err)
		}
		if emitJSON(items) {
			return
		}

		if len(items) == 0 {
			fmt.Println("📭 No notifications")
			return
		}

		fmt.Printf("🔔 %d notification(s):\n\n", len(items))
		for _, n := range items {
			marker := " "
			if !n.IsRead {
				marker = "•"
			}
			action := ""
			if n.ActionRequired {
				action = " [action required]"
			}
			fmt.Printf("%s %s  %-8s %-6s %s%s\n", marker, n.ID, n.Type, n.Priority, n.Message, action)
		}
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID("notification id", args[0])
		if err != nil {
			fail("%v", err)
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := newClient().MarkNotificationRead(ctx, id); err != nil {
			failAPI("Failed to mark notification read", err)
		}
		fmt.Println("✅ Marked as read")
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.Flags().BoolVar(&notificationsUnread, "unread", false, "Only unread notifications")
	notificationsCmd.Flags().IntVar(&notificationsLimit, "limit", 50, "Maximum number of notifications")
}
