package testutil

import (
	"testing"

	"github.com/davidmoltin/efiling-workflows/migrations"
	"github.com/davidmoltin/efiling-workflows/pkg/database"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/stretchr/testify/require"
)

func migrator(t *testing.T, db *TestDB) *database.Migrator {
	t.Helper()

	m, err := database.NewMigrator(db.DB, migrations.FS, migrations.Dir, logger.NewForTesting())
	require.NoError(t, err, "Failed to create migrator")
	return m
}

// RunMigrations applies the embedded migrations to the test database
func RunMigrations(t *testing.T, db *TestDB) {
	t.Helper()

	m := migrator(t, db)
	defer m.Close()
	require.NoError(t, m.Up(), "Failed to run migrations")
}

// MigrateDown rolls back every migration
func MigrateDown(t *testing.T, db *TestDB) {
	t.Helper()

	m := migrator(t, db)
	defer m.Close()
	require.NoError(t, m.Down(0), "Failed to roll back migrations")
}
