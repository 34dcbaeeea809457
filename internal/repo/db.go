// Package repo contains all database access logic for the carpool API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting it instead of *pgxpool.Pool lets the booking engine bind repos to
// a transaction and lets integration tests roll every test back.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows, so one scanX helper
// serves QueryRow and Query alike.
type scanner interface {
	Scan(dest ...any) error
}

// Postgres SQLSTATE codes the repos translate into domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// constraintMessages gives a client-facing reason for named constraints.
var constraintMessages = map[string]string{
	"users_email_key":                    "email already registered",
	"vehicles_plate_key":                 "plate already registered",
	"payments_transaction_id_key":        "a payment with this transaction id already exists",
	"trips_available_seats_range":        "available seats out of range",
	"evaluations_distinct_parties":       "evaluator and evaluated must be different users",
	"pix_charges_gateway_payment_id_key": "gateway payment already linked",
}

// mapWriteError translates constraint violations raised by INSERT/UPDATE.
// A dangling foreign key on write means the client referenced a missing row.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == "trip_passengers_active_key" {
			return domain.ErrDuplicateBooking
		}
		return fmt.Errorf("%w: %s", domain.ErrConflict, constraintMessage(pgErr, "resource already exists"))
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: referenced resource does not exist (%s)", domain.ErrValidation, pgErr.ConstraintName)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrValidation, constraintMessage(pgErr, "value out of range"))
	}
	return err
}

// mapDeleteError translates a foreign key violation on DELETE into a conflict:
// the row is still referenced elsewhere.
func mapDeleteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: resource is still referenced (%s)", domain.ErrConflict, pgErr.TableName)
	}
	return err
}

func constraintMessage(pgErr *pgconn.PgError, fallback string) string {
	if msg, ok := constraintMessages[pgErr.ConstraintName]; ok {
		return msg
	}
	return fallback
}

// notFound maps pgx.ErrNoRows onto domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// optUUID converts a nullable pgtype.UUID into *uuid.UUID.
func optUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// nullTime binds a zero time.Time as NULL.
func nullTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

// optString converts a pointer to a string-kinded enum into *string so it
// can be bound to a nullable text parameter.
func optString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// pageArgs adds LIMIT/OFFSET parameters to args.
func pageArgs(args pgx.NamedArgs, p domain.PaginationParams) pgx.NamedArgs {
	args["limit"] = p.Limit
	args["offset"] = p.Offset()
	return args
}

// count runs a COUNT(*) query and returns its single value.
func count(ctx context.Context, d db, q string, args pgx.NamedArgs) (int64, error) {
	var n int64
	if err := d.QueryRow(ctx, q, args).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
