package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/mussel-core/internal/infrastructure/config"
	"github.com/nerrad567/mussel-core/internal/infrastructure/database"
	_ "github.com/nerrad567/mussel-core/migrations"
)

// setupTestDB opens a migrated SQLite file under t.TempDir().
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "telemetry.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func float(v float64) *float64 { return &v }
