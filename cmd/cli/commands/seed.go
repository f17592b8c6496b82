package commands

import (
	"fmt"

	"github.com/davidmoltin/efiling-workflows/internal/repository/postgres"
	"github.com/davidmoltin/efiling-workflows/internal/seeds"
	"github.com/spf13/cobra"
)

var seedDemo bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the default workflow templates",
	Long: `Create the default workflow templates. Seeding is idempotent: templates
are immutable, so an existing code is skipped.

With --demo, also mirror a set of demo users and register a demo file
created by the junior engineer.

Examples:
  efilingctl seed
  efilingctl seed --demo`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_, db, log := openDatabase()
		defer db.Close()

		seeder := seeds.NewSeeder(postgres.NewStore(db, log), log)
		report, err := seeder.Run(cmd.Context(), seedDemo)
		if err != nil {
			fail("Seeding failed: %v", err)
		}

		if emitJSON(report) {
			return
		}

		fmt.Println("✅ Seeding complete")
		fmt.Printf("Templates:    %d created, %d already present\n", report.TemplatesCreated, report.TemplatesSkipped)
		if seedDemo {
			fmt.Printf("Users:        %d upserted\n", report.Users)
			fmt.Printf("Files:        %d created, %d already present\n", report.FilesCreated, report.FilesSkipped)
			fmt.Println("\n💡 Demo file creator:")
			fmt.Printf("  efilingctl token %s --role JE --department ROADS\n", seeds.StableID("user", "JE"))
		}
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().BoolVar(&seedDemo, "demo", false, "Also seed demo users and a demo file")
}
