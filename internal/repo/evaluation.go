package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// EvaluationRepo defines the persistence operations for Evaluations.
type EvaluationRepo interface {
	Create(ctx context.Context, e domain.Evaluation) (domain.Evaluation, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Evaluation, error)
	List(ctx context.Context, f domain.EvaluationFilter, p domain.PaginationParams) ([]domain.Evaluation, int64, error)
	// Update overwrites rating and comment.
	Update(ctx context.Context, e domain.Evaluation) (domain.Evaluation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgEvaluationRepo struct {
	db db
}

// NewEvaluationRepo constructs an EvaluationRepo backed by db.
func NewEvaluationRepo(db db) EvaluationRepo {
	return &pgEvaluationRepo{db: db}
}

const evaluationColumns = `id, trip_id, evaluator_id, evaluated_id, rating, comment, created_at`

func (r *pgEvaluationRepo) Create(ctx context.Context, e domain.Evaluation) (domain.Evaluation, error) {
	q := `
		INSERT INTO evaluations (trip_id, evaluator_id, evaluated_id, rating, comment)
		VALUES (@trip_id, @evaluator_id, @evaluated_id, @rating, @comment)
		RETURNING ` + evaluationColumns

	args := pgx.NamedArgs{
		"trip_id":      e.TripID,
		"evaluator_id": e.EvaluatorID,
		"evaluated_id": e.EvaluatedID,
		"rating":       e.Rating,
		"comment":      e.Comment,
	}

	result, err := scanEvaluation(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("repo.EvaluationRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgEvaluationRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Evaluation, error) {
	q := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = @id`

	result, err := scanEvaluation(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("repo.EvaluationRepo.GetByID: %w", err)
	}
	return result, nil
}

const evaluationFilterWhere = `
		WHERE (@trip_id::uuid IS NULL OR trip_id = @trip_id)
		  AND (@evaluator_id::uuid IS NULL OR evaluator_id = @evaluator_id)
		  AND (@evaluated_id::uuid IS NULL OR evaluated_id = @evaluated_id)`

func (r *pgEvaluationRepo) List(ctx context.Context, f domain.EvaluationFilter, p domain.PaginationParams) ([]domain.Evaluation, int64, error) {
	args := pgx.NamedArgs{
		"trip_id":      f.TripID,
		"evaluator_id": f.EvaluatorID,
		"evaluated_id": f.EvaluatedID,
	}

	total, err := count(ctx, r.db, `SELECT count(*) FROM evaluations`+evaluationFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.EvaluationRepo.List: count: %w", err)
	}

	q := `SELECT ` + evaluationColumns + ` FROM evaluations` + evaluationFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.EvaluationRepo.List: %w", err)
	}
	defer rows.Close()

	var evals []domain.Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.EvaluationRepo.List: scan: %w", err)
		}
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.EvaluationRepo.List: rows: %w", err)
	}
	return evals, total, nil
}

func (r *pgEvaluationRepo) Update(ctx context.Context, e domain.Evaluation) (domain.Evaluation, error) {
	q := `
		UPDATE evaluations
		SET rating  = @rating,
		    comment = @comment
		WHERE id = @id
		RETURNING ` + evaluationColumns

	args := pgx.NamedArgs{
		"id":      e.ID,
		"rating":  e.Rating,
		"comment": e.Comment,
	}

	result, err := scanEvaluation(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("repo.EvaluationRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgEvaluationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM evaluations WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.EvaluationRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.EvaluationRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanEvaluation(s scanner) (domain.Evaluation, error) {
	var (
		e                                  domain.Evaluation
		id, tripID, evaluatorID, evaluated pgtype.UUID
	)
	err := s.Scan(&id, &tripID, &evaluatorID, &evaluated, &e.Rating, &e.Comment, &e.CreatedAt)
	if err != nil {
		return domain.Evaluation{}, notFound(err)
	}
	e.ID = uuid.UUID(id.Bytes)
	e.TripID = uuid.UUID(tripID.Bytes)
	e.EvaluatorID = uuid.UUID(evaluatorID.Bytes)
	e.EvaluatedID = uuid.UUID(evaluated.Bytes)
	return e, nil
}
