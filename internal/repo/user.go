package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// UserRepo defines the persistence operations for Users.
type UserRepo interface {
	// Create inserts a user. A second account with the same email (case
	// insensitive) fails with domain.ErrConflict.
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	// GetByEmail looks a user up for login. The match ignores case.
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// List returns a page of users, newest first.
	List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error)
	// Update overwrites name, email, phone, role and active. An empty
	// PasswordHash leaves the stored hash unchanged.
	Update(ctx context.Context, u domain.User) (domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgUserRepo struct {
	db db
}

// NewUserRepo constructs a UserRepo backed by db.
func NewUserRepo(db db) UserRepo {
	return &pgUserRepo{db: db}
}

const userColumns = `id, name, email, password_hash, phone, role, active, created_at`

func (r *pgUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	q := `
		INSERT INTO users (name, email, password_hash, phone, role, active)
		VALUES (@name, @email, @password_hash, @phone, @role, @active)
		RETURNING ` + userColumns

	args := pgx.NamedArgs{
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"phone":         u.Phone,
		"role":          string(u.Role),
		"active":        u.Active,
	}

	result, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = @id`

	result, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower(@email)`

	result, err := scanUser(r.db.QueryRow(ctx, q, pgx.NamedArgs{"email": email}))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.GetByEmail: %w", err)
	}
	return result, nil
}

func (r *pgUserRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error) {
	total, err := count(ctx, r.db, `SELECT count(*) FROM users`, pgx.NamedArgs{})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.UserRepo.List: count: %w", err)
	}

	q := `SELECT ` + userColumns + ` FROM users
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(pgx.NamedArgs{}, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.UserRepo.List: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.UserRepo.List: scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.UserRepo.List: rows: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	q := `
		UPDATE users
		SET name          = @name,
		    email         = @email,
		    phone         = @phone,
		    role          = @role,
		    active        = @active,
		    password_hash = COALESCE(NULLIF(@password_hash, ''), password_hash)
		WHERE id = @id
		RETURNING ` + userColumns

	args := pgx.NamedArgs{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"phone":         u.Phone,
		"role":          string(u.Role),
		"active":        u.Active,
		"password_hash": u.PasswordHash,
	}

	result, err := scanUser(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.User{}, fmt.Errorf("repo.UserRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.UserRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.UserRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u    domain.User
		id   pgtype.UUID
		role string
	)
	if err := s.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &role, &u.Active, &u.CreatedAt); err != nil {
		return domain.User{}, notFound(err)
	}
	u.ID = uuid.UUID(id.Bytes)
	u.Role = domain.Role(role)
	return u, nil
}
