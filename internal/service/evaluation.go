package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// EvaluationService implements business logic for ratings between trip
// participants.
type EvaluationService struct {
	repo repo.EvaluationRepo
}

// NewEvaluationService constructs an EvaluationService.
func NewEvaluationService(r repo.EvaluationRepo) *EvaluationService {
	return &EvaluationService{repo: r}
}

// Create records an evaluation. evaluator_id defaults to the caller.
func (s *EvaluationService) Create(ctx context.Context, caller domain.Principal, e domain.Evaluation) (domain.Evaluation, error) {
	if err := ownedBy(caller, &e.EvaluatorID); err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.Create: %w", err)
	}
	if e.TripID == uuid.Nil || e.EvaluatedID == uuid.Nil {
		return domain.Evaluation{}, fmt.Errorf("%w: trip_id and evaluated_id are required", domain.ErrValidation)
	}
	if e.EvaluatorID == e.EvaluatedID {
		return domain.Evaluation{}, fmt.Errorf("%w: a user cannot evaluate themselves", domain.ErrValidation)
	}
	if err := validateRating(e.Rating); err != nil {
		return domain.Evaluation{}, err
	}
	e.Comment = strings.TrimSpace(e.Comment)

	result, err := s.repo.Create(ctx, e)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.Create: %w", err)
	}
	return result, nil
}

func (s *EvaluationService) GetByID(ctx context.Context, id uuid.UUID) (domain.Evaluation, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.GetByID: %w", err)
	}
	return e, nil
}

func (s *EvaluationService) List(ctx context.Context, f domain.EvaluationFilter, p domain.PaginationParams) ([]domain.Evaluation, int64, error) {
	out, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.EvaluationService.List: %w", err)
	}
	return nonNil(out), total, nil
}

// Update changes rating and comment. Only the evaluator or an admin may edit.
func (s *EvaluationService) Update(ctx context.Context, caller domain.Principal, e domain.Evaluation) (domain.Evaluation, error) {
	current, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.Update: %w", err)
	}
	if err := requireOwner(caller, current.EvaluatorID); err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.Update: %w", err)
	}
	if err := validateRating(e.Rating); err != nil {
		return domain.Evaluation{}, err
	}
	current.Rating = e.Rating
	current.Comment = strings.TrimSpace(e.Comment)

	result, err := s.repo.Update(ctx, current)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("service.EvaluationService.Update: %w", err)
	}
	return result, nil
}

func (s *EvaluationService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.EvaluationService.Delete: %w", err)
	}
	if err := requireOwner(caller, current.EvaluatorID); err != nil {
		return fmt.Errorf("service.EvaluationService.Delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.EvaluationService.Delete: %w", err)
	}
	return nil
}

func validateRating(r int) error {
	if r < 1 || r > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}
	return nil
}
