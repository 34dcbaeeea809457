package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// RouteService implements business logic for Route operations.
type RouteService struct {
	repo repo.RouteRepo
}

// NewRouteService constructs a RouteService.
func NewRouteService(r repo.RouteRepo) *RouteService {
	return &RouteService{repo: r}
}

// Create validates and persists a route owned by the caller.
func (s *RouteService) Create(ctx context.Context, caller domain.Principal, rt domain.Route) (domain.Route, error) {
	if err := ownedBy(caller, &rt.CreatedByID); err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Create: %w", err)
	}
	rt, err := normalizeRoute(rt)
	if err != nil {
		return domain.Route{}, err
	}
	result, err := s.repo.Create(ctx, rt)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Create: %w", err)
	}
	return result, nil
}

func (s *RouteService) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	rt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.GetByID: %w", err)
	}
	return rt, nil
}

func (s *RouteService) List(ctx context.Context, f domain.RouteFilter, p domain.PaginationParams) ([]domain.Route, int64, error) {
	out, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.RouteService.List: %w", err)
	}
	return nonNil(out), total, nil
}

func (s *RouteService) Update(ctx context.Context, caller domain.Principal, rt domain.Route) (domain.Route, error) {
	current, err := s.repo.GetByID(ctx, rt.ID)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Update: %w", err)
	}
	if err := requireOwner(caller, current.CreatedByID); err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Update: %w", err)
	}
	rt.CreatedByID = current.CreatedByID
	rt, err = normalizeRoute(rt)
	if err != nil {
		return domain.Route{}, err
	}
	result, err := s.repo.Update(ctx, rt)
	if err != nil {
		return domain.Route{}, fmt.Errorf("service.RouteService.Update: %w", err)
	}
	return result, nil
}

// Delete removes a route. Routes referenced by trips cannot be deleted.
func (s *RouteService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.RouteService.Delete: %w", err)
	}
	if err := requireOwner(caller, current.CreatedByID); err != nil {
		return fmt.Errorf("service.RouteService.Delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.RouteService.Delete: %w", err)
	}
	return nil
}

func normalizeRoute(rt domain.Route) (domain.Route, error) {
	rt.Origin = strings.TrimSpace(rt.Origin)
	rt.Destination = strings.TrimSpace(rt.Destination)
	if rt.Origin == "" || rt.Destination == "" {
		return rt, fmt.Errorf("%w: origin and destination are required", domain.ErrValidation)
	}
	if strings.EqualFold(rt.Origin, rt.Destination) {
		return rt, fmt.Errorf("%w: origin and destination must differ", domain.ErrValidation)
	}
	if rt.DistanceKm != nil && *rt.DistanceKm <= 0 {
		return rt, fmt.Errorf("%w: distance_km must be positive", domain.ErrValidation)
	}
	return rt, nil
}
