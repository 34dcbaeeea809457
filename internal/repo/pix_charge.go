package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// PixChargeRepo persists the link between gateway PIX payments and the seat
// holds they pay for.
type PixChargeRepo interface {
	Create(ctx context.Context, c domain.PixCharge) (domain.PixCharge, error)
	// GetByGatewayID finds a charge by the gateway's payment id.
	GetByGatewayID(ctx context.Context, gatewayID string) (domain.PixCharge, error)
	// GetByGatewayIDForUpdate is GetByGatewayID plus a row lock, so two
	// reconcilers of the same payment run one after the other.
	GetByGatewayIDForUpdate(ctx context.Context, gatewayID string) (domain.PixCharge, error)
	// UpdateStatus records the latest gateway status. When reconciled is true
	// reconciled_at is stamped, removing the charge from ListDue.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GatewayStatus, reconciled bool) (domain.PixCharge, error)
	// ListDue returns up to limit unreconciled charges whose next check is
	// at or before now, the longest overdue first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.PixCharge, error)
	// ScheduleCheck sets when the charge is next due. failed counts one more
	// consecutive lookup failure; otherwise the count is reset.
	ScheduleCheck(ctx context.Context, id uuid.UUID, at time.Time, failed bool) error
}

type pgPixChargeRepo struct {
	db db
}

// NewPixChargeRepo constructs a PixChargeRepo backed by db.
func NewPixChargeRepo(db db) PixChargeRepo {
	return &pgPixChargeRepo{db: db}
}

const pixChargeColumns = `id, gateway_payment_id, payer_id, trip_id, trip_passenger_id, amount::float8,
		status, expires_at, reconciled_at, next_check_at, check_failures, created_at, updated_at`

func (r *pgPixChargeRepo) Create(ctx context.Context, c domain.PixCharge) (domain.PixCharge, error) {
	q := `
		INSERT INTO pix_charges (gateway_payment_id, payer_id, trip_id, trip_passenger_id, amount, status, expires_at)
		VALUES (@gateway_payment_id, @payer_id, @trip_id, @trip_passenger_id, @amount, @status, @expires_at)
		RETURNING ` + pixChargeColumns

	args := pgx.NamedArgs{
		"gateway_payment_id": c.GatewayPaymentID,
		"payer_id":           c.PayerID,
		"trip_id":            c.TripID,
		"trip_passenger_id":  c.TripPassengerID,
		"amount":             c.Amount,
		"status":             string(c.Status),
		"expires_at":         c.ExpiresAt,
	}

	result, err := scanPixCharge(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PixCharge{}, fmt.Errorf("repo.PixChargeRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgPixChargeRepo) GetByGatewayID(ctx context.Context, gatewayID string) (domain.PixCharge, error) {
	q := `SELECT ` + pixChargeColumns + ` FROM pix_charges WHERE gateway_payment_id = @gateway_payment_id`

	result, err := scanPixCharge(r.db.QueryRow(ctx, q, pgx.NamedArgs{"gateway_payment_id": gatewayID}))
	if err != nil {
		return domain.PixCharge{}, fmt.Errorf("repo.PixChargeRepo.GetByGatewayID: %w", err)
	}
	return result, nil
}

func (r *pgPixChargeRepo) GetByGatewayIDForUpdate(ctx context.Context, gatewayID string) (domain.PixCharge, error) {
	q := `SELECT ` + pixChargeColumns + ` FROM pix_charges WHERE gateway_payment_id = @gateway_payment_id FOR UPDATE`

	result, err := scanPixCharge(r.db.QueryRow(ctx, q, pgx.NamedArgs{"gateway_payment_id": gatewayID}))
	if err != nil {
		return domain.PixCharge{}, fmt.Errorf("repo.PixChargeRepo.GetByGatewayIDForUpdate: %w", err)
	}
	return result, nil
}

func (r *pgPixChargeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GatewayStatus, reconciled bool) (domain.PixCharge, error) {
	q := `
		UPDATE pix_charges
		SET status        = @status,
		    reconciled_at = CASE WHEN @reconciled::boolean THEN COALESCE(reconciled_at, now()) ELSE reconciled_at END,
		    updated_at    = now()
		WHERE id = @id
		RETURNING ` + pixChargeColumns

	args := pgx.NamedArgs{"id": id, "status": string(status), "reconciled": reconciled}

	result, err := scanPixCharge(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.PixCharge{}, fmt.Errorf("repo.PixChargeRepo.UpdateStatus: %w", err)
	}
	return result, nil
}

func (r *pgPixChargeRepo) ScheduleCheck(ctx context.Context, id uuid.UUID, at time.Time, failed bool) error {
	q := `
		UPDATE pix_charges
		SET next_check_at  = @at,
		    check_failures = CASE WHEN @failed::boolean THEN check_failures + 1 ELSE 0 END
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "at": at, "failed": failed})
	if err != nil {
		return fmt.Errorf("repo.PixChargeRepo.ScheduleCheck: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PixChargeRepo.ScheduleCheck: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgPixChargeRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.PixCharge, error) {
	q := `SELECT ` + pixChargeColumns + ` FROM pix_charges
		WHERE reconciled_at IS NULL AND next_check_at <= @now
		ORDER BY next_check_at, created_at
		LIMIT @limit`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"now": now, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("repo.PixChargeRepo.ListDue: %w", err)
	}
	defer rows.Close()

	var charges []domain.PixCharge
	for rows.Next() {
		c, err := scanPixCharge(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.PixChargeRepo.ListDue: scan: %w", err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.PixChargeRepo.ListDue: rows: %w", err)
	}
	return charges, nil
}

func scanPixCharge(s scanner) (domain.PixCharge, error) {
	var (
		c                   domain.PixCharge
		id, payerID         pgtype.UUID
		tripID, passengerID pgtype.UUID
		status              string
		reconciledAt        pgtype.Timestamptz
	)
	err := s.Scan(&id, &c.GatewayPaymentID, &payerID, &tripID, &passengerID, &c.Amount,
		&status, &c.ExpiresAt, &reconciledAt, &c.NextCheckAt, &c.CheckFailures, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.PixCharge{}, notFound(err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.PayerID = uuid.UUID(payerID.Bytes)
	c.TripID = optUUID(tripID)
	c.TripPassengerID = optUUID(passengerID)
	c.Status = domain.GatewayStatus(status)
	if reconciledAt.Valid {
		t := reconciledAt.Time
		c.ReconciledAt = &t
	}
	return c, nil
}
