package commands

import (
	"fmt"
	"strconv"

	"github.com/davidmoltin/efiling-workflows/migrations"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply or roll back the embedded schema migrations. Connection settings
are read from the DB_* environment variables.

Examples:
  efilingctl migrate up
  efilingctl migrate down 1
  efilingctl migrate version`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withMigrator(func(m *database.Migrator) {
			if err := m.Up(); err != nil {
				fail("%v", err)
			}
			printVersion(m)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (all of them when no steps are given)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		steps := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				fail("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}

		withMigrator(func(m *database.Migrator) {
			if err := m.Down(steps); err != nil {
				fail("%v", err)
			}
			printVersion(m)
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withMigrator(printVersion)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrator(fn func(m *database.Migrator)) {
	_, db, log := openDatabase()
	defer db.Close()

	m, err := database.NewMigrator(db.DB, migrations.FS, migrations.Dir, log)
	if err != nil {
		fail("%v", err)
	}
	defer m.Close()

	fn(m)
}

func printVersion(m *database.Migrator) {
	version, dirty, err := m.Version()
	if err != nil {
		fail("Failed to read schema version: %v", err)
	}
	if version == 0 {
		fmt.Println("📭 No migrations applied")
		return
	}
	if dirty {
		fmt.Printf("⚠️  Schema version %d is dirty; fix the failed migration and force the version\n", version)
		return
	}
	fmt.Printf("✅ Schema at version %d\n", version)
}
