package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxRepos bundles the repos that take part in booking transactions, all bound
// to the same pgx.Tx.
type TxRepos struct {
	Trips      TripRepo
	Passengers TripPassengerRepo
	Payments   PaymentRepo
	PixCharges PixChargeRepo
}

// Transactor runs a function inside one database transaction. The function's
// error (or a panic) rolls the transaction back; a nil return commits it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

// beginner is satisfied by *pgxpool.Pool and by pgx.Tx (as a savepoint), so
// integration tests can nest booking transactions inside a rolled-back one.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgTransactor struct {
	db beginner
}

// NewTransactor constructs a Transactor over a pool or an outer transaction.
func NewTransactor(db beginner) Transactor {
	return &pgTransactor{db: db}
}

// WithinTx begins a transaction, binds fresh repos to it and hands them to fn.
func (t *pgTransactor) WithinTx(ctx context.Context, fn func(r TxRepos) error) error {
	err := pgx.BeginFunc(ctx, t.db, func(tx pgx.Tx) error {
		return fn(TxRepos{
			Trips:      NewTripRepo(tx),
			Passengers: NewTripPassengerRepo(tx),
			Payments:   NewPaymentRepo(tx),
			PixCharges: NewPixChargeRepo(tx),
		})
	})
	if err != nil {
		return fmt.Errorf("repo.Transactor.WithinTx: %w", err)
	}
	return nil
}
