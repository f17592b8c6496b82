package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the workflow API is reachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := newClient().HealthCheck(ctx); err != nil {
			fmt.Printf("❌ API health check failed: %v\n", err)
			fmt.Println("💡 Tip: Make sure the API server is running at", viper.GetString("api.url"))
			os.Exit(1)
		}
		fmt.Println("✅ API is healthy at", viper.GetString("api.url"))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
