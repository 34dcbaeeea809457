package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// VehicleRepo defines the persistence operations for Vehicles.
type VehicleRepo interface {
	// Create inserts a vehicle. Plates are unique ignoring case.
	Create(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Vehicle, error)
	List(ctx context.Context, f domain.VehicleFilter, p domain.PaginationParams) ([]domain.Vehicle, int64, error)
	Update(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgVehicleRepo struct {
	db db
}

// NewVehicleRepo constructs a VehicleRepo backed by db.
func NewVehicleRepo(db db) VehicleRepo {
	return &pgVehicleRepo{db: db}
}

const vehicleColumns = `id, driver_id, model, plate, color, year, created_at`

func (r *pgVehicleRepo) Create(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	q := `
		INSERT INTO vehicles (driver_id, model, plate, color, year)
		VALUES (@driver_id, @model, @plate, @color, @year)
		RETURNING ` + vehicleColumns

	args := pgx.NamedArgs{
		"driver_id": v.DriverID,
		"model":     v.Model,
		"plate":     v.Plate,
		"color":     v.Color,
		"year":      v.Year,
	}

	result, err := scanVehicle(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.VehicleRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgVehicleRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Vehicle, error) {
	q := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = @id`

	result, err := scanVehicle(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.VehicleRepo.GetByID: %w", err)
	}
	return result, nil
}

const vehicleFilterWhere = `
		WHERE (@driver_id::uuid IS NULL OR driver_id = @driver_id)`

func (r *pgVehicleRepo) List(ctx context.Context, f domain.VehicleFilter, p domain.PaginationParams) ([]domain.Vehicle, int64, error) {
	args := pgx.NamedArgs{"driver_id": f.DriverID}

	total, err := count(ctx, r.db, `SELECT count(*) FROM vehicles`+vehicleFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.VehicleRepo.List: count: %w", err)
	}

	q := `SELECT ` + vehicleColumns + ` FROM vehicles` + vehicleFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.VehicleRepo.List: %w", err)
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.VehicleRepo.List: scan: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.VehicleRepo.List: rows: %w", err)
	}
	return vehicles, total, nil
}

func (r *pgVehicleRepo) Update(ctx context.Context, v domain.Vehicle) (domain.Vehicle, error) {
	q := `
		UPDATE vehicles
		SET model = @model,
		    plate = @plate,
		    color = @color,
		    year  = @year
		WHERE id = @id
		RETURNING ` + vehicleColumns

	args := pgx.NamedArgs{
		"id":    v.ID,
		"model": v.Model,
		"plate": v.Plate,
		"color": v.Color,
		"year":  v.Year,
	}

	result, err := scanVehicle(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Vehicle{}, fmt.Errorf("repo.VehicleRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgVehicleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vehicles WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.VehicleRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.VehicleRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanVehicle(s scanner) (domain.Vehicle, error) {
	var (
		v            domain.Vehicle
		id, driverID pgtype.UUID
		year         pgtype.Int4
	)
	if err := s.Scan(&id, &driverID, &v.Model, &v.Plate, &v.Color, &year, &v.CreatedAt); err != nil {
		return domain.Vehicle{}, notFound(err)
	}
	v.ID = uuid.UUID(id.Bytes)
	v.DriverID = uuid.UUID(driverID.Bytes)
	if year.Valid {
		y := int(year.Int32)
		v.Year = &y
	}
	return v, nil
}
