package commands

import (
	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
)

// openDatabase connects with the same DB_* environment the API server uses
func openDatabase() (*config.Config, *database.PostgresDB, *logger.Logger) {
	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Logger.Level, "console")
	if err != nil {
		fail("Failed to initialize logger: %v", err)
	}

	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		fail("Failed to connect to database %s@%s: %v", cfg.Database.Database, cfg.Database.Host, err)
	}
	return cfg, db, log
}
