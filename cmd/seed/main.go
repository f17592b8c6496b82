package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/davidmoltin/efiling-workflows/internal/repository/postgres"
	"github.com/davidmoltin/efiling-workflows/internal/seeds"
	"github.com/davidmoltin/efiling-workflows/migrations"
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	var (
		demo       = flag.Bool("demo", false, "Also seed demo users and a demo file")
		verifyOnly = flag.Bool("verify", false, "Only verify the default templates, don't seed")
		migrate    = flag.Bool("migrate", false, "Apply pending schema migrations first")
	)
	flag.Parse()

	if err := run(*demo, *verifyOnly, *migrate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(demo, verifyOnly, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()
	log = log.Named("seed")

	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if migrate {
		m, err := database.NewMigrator(db.DB, migrations.FS, migrations.Dir, log)
		if err != nil {
			return err
		}
		err = m.Up()
		m.Close()
		if err != nil {
			return err
		}
	}

	seeder := seeds.NewSeeder(postgres.NewStore(db, log), log)

	if !verifyOnly {
		report, err := seeder.Run(ctx, demo)
		if err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
		log.Info("Seeding complete",
			zap.Int("templates_created", report.TemplatesCreated),
			zap.Int("templates_skipped", report.TemplatesSkipped),
			zap.Int("users", report.Users),
			zap.Int("files_created", report.FilesCreated),
		)
	}

	problems, err := seeder.Verify(ctx)
	if err != nil {
		return err
	}
	for _, p := range problems {
		log.Warn("Template check failed", zap.String("problem", p))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d template check(s) failed", len(problems))
	}
	log.Info("All default templates verified")
	return nil
}
