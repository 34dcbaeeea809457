package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// TripRepo defines the persistence operations for Trips.
// The service layer depends on this interface, not the Postgres implementation,
// which allows the services to be unit-tested with a mock.
type TripRepo interface {
	// Create inserts a new trip and returns the persisted record.
	Create(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// GetByID retrieves a single trip. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// GetByIDForUpdate retrieves a trip and locks its row until the enclosing
	// transaction ends. Only meaningful on a repo bound to a pgx.Tx.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error)

	// List returns one page of trips matching f, ordered by departure_at
	// descending, plus the total number of matches.
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)

	// Update overwrites route, vehicle, departure and price. Seats and status
	// are untouched. Returns domain.ErrNotFound if the trip does not exist.
	Update(ctx context.Context, trip domain.Trip) (domain.Trip, error)

	// AdjustAvailableSeats adds delta (possibly negative) to available_seats.
	// The table's range check rejects results outside 0..total_seats.
	AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) (domain.Trip, error)

	// UpdateStatus sets the lifecycle status of a trip.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error)

	// Delete removes a trip. Returns domain.ErrConflict while bookings or
	// payments still reference it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// pgTripRepo is the Postgres implementation of TripRepo.
type pgTripRepo struct {
	db db
}

// NewTripRepo constructs a TripRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewTripRepo(db db) TripRepo {
	return &pgTripRepo{db: db}
}

const tripColumns = `id, driver_id, route_id, vehicle_id, departure_at, total_seats,
		available_seats, price_per_person::float8, status, created_at, updated_at`

// Create inserts a trip with every seat available and status OPEN.
func (r *pgTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		INSERT INTO trips (driver_id, route_id, vehicle_id, departure_at, total_seats,
		                   available_seats, price_per_person, status)
		VALUES (@driver_id, @route_id, @vehicle_id, @departure_at, @total_seats,
		        @total_seats, @price_per_person, 'OPEN')
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"driver_id":        trip.DriverID,
		"route_id":         trip.RouteID,
		"vehicle_id":       trip.VehicleID, // nil becomes NULL
		"departure_at":     trip.DepartureAt,
		"total_seats":      trip.TotalSeats,
		"price_per_person": trip.PricePerPerson,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

// GetByID retrieves a trip by primary key.
func (r *pgTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", err)
	}
	return result, nil
}

// GetByIDForUpdate retrieves a trip and takes a row-level write lock on it.
// Concurrent reservations for the same trip queue on this lock.
func (r *pgTripRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id = @id FOR UPDATE`

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByIDForUpdate: %w", err)
	}
	return result, nil
}

const tripFilterWhere = `
		WHERE (@driver_id::uuid IS NULL OR driver_id = @driver_id)
		  AND (@status::text IS NULL OR status = @status)`

// List returns a page of trips, most recent departure first.
func (r *pgTripRepo) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	args := pgx.NamedArgs{
		"driver_id": f.DriverID,
		"status":    optString(f.Status),
	}

	total, err := count(ctx, r.db, `SELECT count(*) FROM trips`+tripFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: count: %w", err)
	}

	q := `SELECT ` + tripColumns + ` FROM trips` + tripFilterWhere + `
		ORDER BY departure_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripRepo.List: scan: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripRepo.List: rows: %w", err)
	}
	return trips, total, nil
}

// Update overwrites the editable fields of a trip.
func (r *pgTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET route_id         = @route_id,
		    vehicle_id       = @vehicle_id,
		    departure_at     = @departure_at,
		    price_per_person = @price_per_person,
		    updated_at       = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	args := pgx.NamedArgs{
		"id":               trip.ID,
		"route_id":         trip.RouteID,
		"vehicle_id":       trip.VehicleID,
		"departure_at":     trip.DepartureAt,
		"price_per_person": trip.PricePerPerson,
	}

	result, err := scanTrip(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

// AdjustAvailableSeats shifts the seat counter by delta in a single statement.
func (r *pgTripRepo) AdjustAvailableSeats(ctx context.Context, id uuid.UUID, delta int) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET available_seats = available_seats + @delta,
		    updated_at      = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "delta": delta}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.AdjustAvailableSeats: %w", mapWriteError(err))
	}
	return result, nil
}

// UpdateStatus writes a new lifecycle status. Transition rules are enforced by
// the service; this only persists the outcome.
func (r *pgTripRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	q := `
		UPDATE trips
		SET status     = @status,
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + tripColumns

	result, err := scanTrip(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)}))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("repo.TripRepo.UpdateStatus: %w", mapWriteError(err))
	}
	return result, nil
}

// Delete removes a trip by primary key.
func (r *pgTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// scanTrip maps a single database row into a domain.Trip.
func scanTrip(s scanner) (domain.Trip, error) {
	var (
		t                          domain.Trip
		id, driverID, routeID, veh pgtype.UUID
		status                     string
	)

	err := s.Scan(&id, &driverID, &routeID, &veh, &t.DepartureAt, &t.TotalSeats,
		&t.AvailableSeats, &t.PricePerPerson, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Trip{}, notFound(err)
	}

	t.ID = uuid.UUID(id.Bytes)
	t.DriverID = uuid.UUID(driverID.Bytes)
	t.RouteID = uuid.UUID(routeID.Bytes)
	t.VehicleID = optUUID(veh)
	t.Status = domain.TripStatus(status)
	return t, nil
}
