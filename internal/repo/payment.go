package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// PaymentRepo defines the persistence operations for Payments.
type PaymentRepo interface {
	// Create inserts a payment. A non-empty TransactionID is unique, so the
	// same gateway payment can never be recorded twice.
	Create(ctx context.Context, p domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	// GetByTransactionID finds the payment recorded for a gateway payment id.
	GetByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error)
	List(ctx context.Context, f domain.PaymentFilter, pg domain.PaginationParams) ([]domain.Payment, int64, error)
	Update(ctx context.Context, p domain.Payment) (domain.Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgPaymentRepo struct {
	db db
}

// NewPaymentRepo constructs a PaymentRepo backed by db.
func NewPaymentRepo(db db) PaymentRepo {
	return &pgPaymentRepo{db: db}
}

const paymentColumns = `id, trip_id, payer_id, credit_card_id, value::float8, status, payment_date, transaction_id`

func (r *pgPaymentRepo) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	q := `
		INSERT INTO payments (trip_id, payer_id, credit_card_id, value, status, payment_date, transaction_id)
		VALUES (@trip_id, @payer_id, @credit_card_id, @value, @status,
		        COALESCE(@payment_date, now()), @transaction_id)
		RETURNING ` + paymentColumns

	args := pgx.NamedArgs{
		"trip_id":        p.TripID,
		"payer_id":       p.PayerID,
		"credit_card_id": p.CreditCardID,
		"value":          p.Value,
		"status":         string(p.Status),
		"payment_date":   nullTime(p.PaymentDate),
		"transaction_id": p.TransactionID,
	}

	result, err := scanPayment(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("repo.PaymentRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = @id`

	result, err := scanPayment(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("repo.PaymentRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgPaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = @transaction_id AND transaction_id <> ''`

	result, err := scanPayment(r.db.QueryRow(ctx, q, pgx.NamedArgs{"transaction_id": transactionID}))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("repo.PaymentRepo.GetByTransactionID: %w", err)
	}
	return result, nil
}

const paymentFilterWhere = `
		WHERE (@trip_id::uuid IS NULL OR trip_id = @trip_id)
		  AND (@payer_id::uuid IS NULL OR payer_id = @payer_id)
		  AND (@status::text IS NULL OR status = @status)`

func (r *pgPaymentRepo) List(ctx context.Context, f domain.PaymentFilter, pg domain.PaginationParams) ([]domain.Payment, int64, error) {
	args := pgx.NamedArgs{
		"trip_id":  f.TripID,
		"payer_id": f.PayerID,
		"status":   optString(f.Status),
	}

	total, err := count(ctx, r.db, `SELECT count(*) FROM payments`+paymentFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PaymentRepo.List: count: %w", err)
	}

	q := `SELECT ` + paymentColumns + ` FROM payments` + paymentFilterWhere + `
		ORDER BY payment_date DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, pg))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PaymentRepo.List: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.PaymentRepo.List: scan: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.PaymentRepo.List: rows: %w", err)
	}
	return payments, total, nil
}

func (r *pgPaymentRepo) Update(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	q := `
		UPDATE payments
		SET credit_card_id = @credit_card_id,
		    value          = @value,
		    status         = @status,
		    transaction_id = @transaction_id
		WHERE id = @id
		RETURNING ` + paymentColumns

	args := pgx.NamedArgs{
		"id":             p.ID,
		"credit_card_id": p.CreditCardID,
		"value":          p.Value,
		"status":         string(p.Status),
		"transaction_id": p.TransactionID,
	}

	result, err := scanPayment(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("repo.PaymentRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgPaymentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.PaymentRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.PaymentRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanPayment(s scanner) (domain.Payment, error) {
	var (
		p                   domain.Payment
		id, tripID, payerID pgtype.UUID
		cardID              pgtype.UUID
		status              string
	)
	err := s.Scan(&id, &tripID, &payerID, &cardID, &p.Value, &status, &p.PaymentDate, &p.TransactionID)
	if err != nil {
		return domain.Payment{}, notFound(err)
	}
	p.ID = uuid.UUID(id.Bytes)
	p.TripID = uuid.UUID(tripID.Bytes)
	p.PayerID = uuid.UUID(payerID.Bytes)
	p.CreditCardID = optUUID(cardID)
	p.Status = domain.PaymentStatus(status)
	return p, nil
}
