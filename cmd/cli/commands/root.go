package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	outputJSON bool
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "efilingctl",
	Short: "E-filing workflow CLI - operate the file approval engine",
	Long: `efilingctl drives the e-filing workflow engine from the command line:
schema migrations, seeding, starting workflows, acting on stages and
reading a file's movement history.

Examples:
  efilingctl migrate up
  efilingctl seed --demo
  efilingctl start --file <file-id> --template <template-id>
  efilingctl action <workflow-id> <stage-id> approve --remarks "estimate verified"
  efilingctl history <file-id>`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.efilingctl.yaml)")
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8080", "Workflow API URL")
	rootCmd.PersistentFlags().String("api-token", "", "Bearer token issued by the identity provider")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("api.token", rootCmd.PersistentFlags().Lookup("api-token"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".efilingctl")
	}

	// EFILING_API_URL, EFILING_API_TOKEN, ...
	viper.SetEnvPrefix("EFILING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !outputJSON {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *cli.Client {
	return cli.NewClient(viper.GetString("api.url"), viper.GetString("api.token"))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func parseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return shortID(*id)
}
