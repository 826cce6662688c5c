package testutil

import (
	"testing"

	"courier/internal/database"
)

// NewTestDatabase creates an in-memory SQLite database with all
// migrations applied. The database is closed when the test completes.
func NewTestDatabase(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
