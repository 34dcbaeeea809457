package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// VehicleService implements business logic for Vehicle operations.
type VehicleService struct {
	repo repo.VehicleRepo
}

// NewVehicleService constructs a VehicleService.
func NewVehicleService(r repo.VehicleRepo) *VehicleService {
	return &VehicleService{repo: r}
}

// Create registers a vehicle. driver_id defaults to the caller.
func (s *VehicleService) Create(ctx context.Context, caller domain.Principal, v domain.Vehicle) (domain.Vehicle, error) {
	if err := ownedBy(caller, &v.DriverID); err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.Create: %w", err)
	}
	v, err := normalizeVehicle(v)
	if err != nil {
		return domain.Vehicle{}, err
	}
	result, err := s.repo.Create(ctx, v)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.Create: %w", err)
	}
	return result, nil
}

func (s *VehicleService) GetByID(ctx context.Context, id uuid.UUID) (domain.Vehicle, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.GetByID: %w", err)
	}
	return v, nil
}

func (s *VehicleService) List(ctx context.Context, f domain.VehicleFilter, p domain.PaginationParams) ([]domain.Vehicle, int64, error) {
	out, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.VehicleService.List: %w", err)
	}
	return nonNil(out), total, nil
}

// Update edits a vehicle. The owner cannot be changed.
func (s *VehicleService) Update(ctx context.Context, caller domain.Principal, v domain.Vehicle) (domain.Vehicle, error) {
	current, err := s.repo.GetByID(ctx, v.ID)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.Update: %w", err)
	}
	if err := requireOwner(caller, current.DriverID); err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.Update: %w", err)
	}
	v.DriverID = current.DriverID
	v, err = normalizeVehicle(v)
	if err != nil {
		return domain.Vehicle{}, err
	}
	result, err := s.repo.Update(ctx, v)
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("service.VehicleService.Update: %w", err)
	}
	return result, nil
}

func (s *VehicleService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service.VehicleService.Delete: %w", err)
	}
	if err := requireOwner(caller, current.DriverID); err != nil {
		return fmt.Errorf("service.VehicleService.Delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.VehicleService.Delete: %w", err)
	}
	return nil
}

func normalizeVehicle(v domain.Vehicle) (domain.Vehicle, error) {
	v.Model = strings.TrimSpace(v.Model)
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))
	v.Color = strings.TrimSpace(v.Color)
	if v.Model == "" {
		return v, fmt.Errorf("%w: model is required", domain.ErrValidation)
	}
	if v.Plate == "" {
		return v, fmt.Errorf("%w: plate is required", domain.ErrValidation)
	}
	if v.Year != nil && (*v.Year < 1900 || *v.Year > 2100) {
		return v, fmt.Errorf("%w: year is out of range", domain.ErrValidation)
	}
	return v, nil
}
