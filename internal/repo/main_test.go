package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkordes/carpool/backend/migrations"
	"github.com/pkordes/carpool/backend/testutil"
)

// TestMain applies all pending migrations once for the whole package, so
// individual tests never need to think about schema state.
func TestMain(m *testing.M) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		// No test DB configured: every integration test skips itself.
		os.Exit(m.Run())
	}

	// goose needs database/sql, not a pgx pool.
	db := testutil.MustOpenSQLDB(os.Getenv("TEST_DATABASE_URL"))
	if _, err := migrations.Up(context.Background(), db); err != nil {
		db.Close()
		log.Fatalf("TestMain: run migrations: %v", err)
	}
	db.Close()

	os.Exit(m.Run())
}
