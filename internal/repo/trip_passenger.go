package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// TripPassengerRepo defines the persistence operations for bookings.
// Seat accounting is not done here: callers pair these writes with
// TripRepo.AdjustAvailableSeats inside one transaction.
type TripPassengerRepo interface {
	// Create inserts a booking with the given status. A second seat-holding
	// booking for the same passenger and trip fails with domain.ErrDuplicateBooking.
	Create(ctx context.Context, tp domain.TripPassenger) (domain.TripPassenger, error)

	// GetByID retrieves a booking. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error)

	// GetByIDForUpdate retrieves a booking and locks its row.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error)

	// List returns one page of bookings matching f, newest first.
	List(ctx context.Context, f domain.TripPassengerFilter, p domain.PaginationParams) ([]domain.TripPassenger, int64, error)

	// HasActive reports whether the passenger holds a PENDING or CONFIRMED
	// booking on the trip.
	HasActive(ctx context.Context, tripID, passengerID uuid.UUID) (bool, error)

	// UpdateStatus sets the status of a single booking.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, error)

	// CancelActiveByTrip cancels every PENDING or CONFIRMED booking on a trip
	// and returns how many rows changed.
	CancelActiveByTrip(ctx context.Context, tripID uuid.UUID) (int64, error)

	// Manifest returns the trip's bookings joined with passenger details,
	// oldest booking first.
	Manifest(ctx context.Context, tripID uuid.UUID) ([]domain.ManifestRow, error)

	// Delete removes a booking row.
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgTripPassengerRepo struct {
	db db
}

// NewTripPassengerRepo constructs a TripPassengerRepo backed by db.
func NewTripPassengerRepo(db db) TripPassengerRepo {
	return &pgTripPassengerRepo{db: db}
}

const tripPassengerColumns = `id, trip_id, passenger_id, status, created_at, updated_at`

func (r *pgTripPassengerRepo) Create(ctx context.Context, tp domain.TripPassenger) (domain.TripPassenger, error) {
	q := `
		INSERT INTO trip_passengers (trip_id, passenger_id, status)
		VALUES (@trip_id, @passenger_id, @status)
		RETURNING ` + tripPassengerColumns

	args := pgx.NamedArgs{
		"trip_id":      tp.TripID,
		"passenger_id": tp.PassengerID,
		"status":       string(tp.Status),
	}

	result, err := scanTripPassenger(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("repo.TripPassengerRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgTripPassengerRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	q := `SELECT ` + tripPassengerColumns + ` FROM trip_passengers WHERE id = @id`

	result, err := scanTripPassenger(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("repo.TripPassengerRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgTripPassengerRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	q := `SELECT ` + tripPassengerColumns + ` FROM trip_passengers WHERE id = @id FOR UPDATE`

	result, err := scanTripPassenger(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("repo.TripPassengerRepo.GetByIDForUpdate: %w", err)
	}
	return result, nil
}

const tripPassengerFilterWhere = `
		WHERE (@trip_id::uuid IS NULL OR trip_id = @trip_id)
		  AND (@passenger_id::uuid IS NULL OR passenger_id = @passenger_id)`

func (r *pgTripPassengerRepo) List(ctx context.Context, f domain.TripPassengerFilter, p domain.PaginationParams) ([]domain.TripPassenger, int64, error) {
	args := pgx.NamedArgs{
		"trip_id":      f.TripID,
		"passenger_id": f.PassengerID,
	}

	total, err := count(ctx, r.db, `SELECT count(*) FROM trip_passengers`+tripPassengerFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripPassengerRepo.List: count: %w", err)
	}

	q := `SELECT ` + tripPassengerColumns + ` FROM trip_passengers` + tripPassengerFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.TripPassengerRepo.List: %w", err)
	}
	defer rows.Close()

	var out []domain.TripPassenger
	for rows.Next() {
		tp, err := scanTripPassenger(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.TripPassengerRepo.List: scan: %w", err)
		}
		out = append(out, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.TripPassengerRepo.List: rows: %w", err)
	}
	return out, total, nil
}

func (r *pgTripPassengerRepo) HasActive(ctx context.Context, tripID, passengerID uuid.UUID) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM trip_passengers
			WHERE trip_id = @trip_id
			  AND passenger_id = @passenger_id
			  AND status IN ('PENDING', 'CONFIRMED')
		)`

	var exists bool
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"trip_id": tripID, "passenger_id": passengerID}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repo.TripPassengerRepo.HasActive: %w", err)
	}
	return exists, nil
}

func (r *pgTripPassengerRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, error) {
	q := `
		UPDATE trip_passengers
		SET status     = @status,
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + tripPassengerColumns

	result, err := scanTripPassenger(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)}))
	if err != nil {
		return domain.TripPassenger{}, fmt.Errorf("repo.TripPassengerRepo.UpdateStatus: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgTripPassengerRepo) CancelActiveByTrip(ctx context.Context, tripID uuid.UUID) (int64, error) {
	const q = `
		UPDATE trip_passengers
		SET status     = 'CANCELED',
		    updated_at = now()
		WHERE trip_id = @trip_id
		  AND status IN ('PENDING', 'CONFIRMED')`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return 0, fmt.Errorf("repo.TripPassengerRepo.CancelActiveByTrip: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgTripPassengerRepo) Manifest(ctx context.Context, tripID uuid.UUID) ([]domain.ManifestRow, error) {
	const q = `
		SELECT tp.id, tp.passenger_id, u.name, u.email, u.phone, tp.status, tp.created_at
		FROM trip_passengers tp
		JOIN users u ON u.id = tp.passenger_id
		WHERE tp.trip_id = @trip_id
		ORDER BY tp.created_at, tp.id`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"trip_id": tripID})
	if err != nil {
		return nil, fmt.Errorf("repo.TripPassengerRepo.Manifest: %w", err)
	}
	defer rows.Close()

	var out []domain.ManifestRow
	for rows.Next() {
		var (
			m          domain.ManifestRow
			id, passID pgtype.UUID
			status     string
		)
		if err := rows.Scan(&id, &passID, &m.PassengerName, &m.PassengerEmail, &m.PassengerPhone, &status, &m.BookedAt); err != nil {
			return nil, fmt.Errorf("repo.TripPassengerRepo.Manifest: scan: %w", err)
		}
		m.TripPassengerID = uuid.UUID(id.Bytes)
		m.PassengerID = uuid.UUID(passID.Bytes)
		m.Status = domain.BookingStatus(status)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.TripPassengerRepo.Manifest: rows: %w", err)
	}
	return out, nil
}

func (r *pgTripPassengerRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trip_passengers WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.TripPassengerRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.TripPassengerRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanTripPassenger(s scanner) (domain.TripPassenger, error) {
	var (
		tp                 domain.TripPassenger
		id, tripID, passID pgtype.UUID
		status             string
	)
	if err := s.Scan(&id, &tripID, &passID, &status, &tp.CreatedAt, &tp.UpdatedAt); err != nil {
		return domain.TripPassenger{}, notFound(err)
	}
	tp.ID = uuid.UUID(id.Bytes)
	tp.TripID = uuid.UUID(tripID.Bytes)
	tp.PassengerID = uuid.UUID(passID.Bytes)
	tp.Status = domain.BookingStatus(status)
	return tp, nil
}
