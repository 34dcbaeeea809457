package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// CreditCardRepo defines the persistence operations for stored cards.
type CreditCardRepo interface {
	Create(ctx context.Context, c domain.CreditCard) (domain.CreditCard, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.CreditCard, error)
	List(ctx context.Context, f domain.CreditCardFilter, p domain.PaginationParams) ([]domain.CreditCard, int64, error)
	// Update overwrites brand, expiration date and nickname. The masked
	// number and token are fixed once the card is tokenised.
	Update(ctx context.Context, c domain.CreditCard) (domain.CreditCard, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgCreditCardRepo struct {
	db db
}

// NewCreditCardRepo constructs a CreditCardRepo backed by db.
func NewCreditCardRepo(db db) CreditCardRepo {
	return &pgCreditCardRepo{db: db}
}

const creditCardColumns = `id, user_id, masked_number, brand, token, expiration_date, nickname, created_at`

func (r *pgCreditCardRepo) Create(ctx context.Context, c domain.CreditCard) (domain.CreditCard, error) {
	q := `
		INSERT INTO credit_cards (user_id, masked_number, brand, token, expiration_date, nickname)
		VALUES (@user_id, @masked_number, @brand, @token, @expiration_date, @nickname)
		RETURNING ` + creditCardColumns

	args := pgx.NamedArgs{
		"user_id":         c.UserID,
		"masked_number":   c.MaskedNumber,
		"brand":           c.Brand,
		"token":           c.Token,
		"expiration_date": c.ExpirationDate,
		"nickname":        c.Nickname,
	}

	result, err := scanCreditCard(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("repo.CreditCardRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgCreditCardRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.CreditCard, error) {
	q := `SELECT ` + creditCardColumns + ` FROM credit_cards WHERE id = @id`

	result, err := scanCreditCard(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("repo.CreditCardRepo.GetByID: %w", err)
	}
	return result, nil
}

const creditCardFilterWhere = `
		WHERE (@user_id::uuid IS NULL OR user_id = @user_id)`

func (r *pgCreditCardRepo) List(ctx context.Context, f domain.CreditCardFilter, p domain.PaginationParams) ([]domain.CreditCard, int64, error) {
	args := pgx.NamedArgs{"user_id": f.UserID}

	total, err := count(ctx, r.db, `SELECT count(*) FROM credit_cards`+creditCardFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.CreditCardRepo.List: count: %w", err)
	}

	q := `SELECT ` + creditCardColumns + ` FROM credit_cards` + creditCardFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.CreditCardRepo.List: %w", err)
	}
	defer rows.Close()

	var cards []domain.CreditCard
	for rows.Next() {
		c, err := scanCreditCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.CreditCardRepo.List: scan: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.CreditCardRepo.List: rows: %w", err)
	}
	return cards, total, nil
}

func (r *pgCreditCardRepo) Update(ctx context.Context, c domain.CreditCard) (domain.CreditCard, error) {
	q := `
		UPDATE credit_cards
		SET brand           = @brand,
		    expiration_date = @expiration_date,
		    nickname        = @nickname
		WHERE id = @id
		RETURNING ` + creditCardColumns

	args := pgx.NamedArgs{
		"id":              c.ID,
		"brand":           c.Brand,
		"expiration_date": c.ExpirationDate,
		"nickname":        c.Nickname,
	}

	result, err := scanCreditCard(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("repo.CreditCardRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgCreditCardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM credit_cards WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.CreditCardRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.CreditCardRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanCreditCard(s scanner) (domain.CreditCard, error) {
	var (
		c          domain.CreditCard
		id, userID pgtype.UUID
	)
	if err := s.Scan(&id, &userID, &c.MaskedNumber, &c.Brand, &c.Token, &c.ExpirationDate, &c.Nickname, &c.CreatedAt); err != nil {
		return domain.CreditCard{}, notFound(err)
	}
	c.ID = uuid.UUID(id.Bytes)
	c.UserID = uuid.UUID(userID.Bytes)
	return c, nil
}
