// Package migrations embeds the goose SQL migrations so the server can apply
// them at start-up and integration tests can run them without a filesystem path.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds every *.sql migration, in goose's NNNNN_name.sql order.
//
//go:embed *.sql
var FS embed.FS

// Up applies every pending migration to db and returns how many ran.
func Up(ctx context.Context, db *sql.DB) (int, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, FS)
	if err != nil {
		return 0, fmt.Errorf("migrations.Up: create provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("migrations.Up: %w", err)
	}
	return len(results), nil
}
