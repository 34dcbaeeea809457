package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// RouteRepo defines the persistence operations for Routes.
type RouteRepo interface {
	Create(ctx context.Context, rt domain.Route) (domain.Route, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error)
	List(ctx context.Context, f domain.RouteFilter, p domain.PaginationParams) ([]domain.Route, int64, error)
	Update(ctx context.Context, rt domain.Route) (domain.Route, error)
	// Delete removes a route. Returns domain.ErrConflict while trips use it.
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgRouteRepo struct {
	db db
}

// NewRouteRepo constructs a RouteRepo backed by db.
func NewRouteRepo(db db) RouteRepo {
	return &pgRouteRepo{db: db}
}

const routeColumns = `id, origin, destination, distance_km::float8, created_by_id, created_at`

func (r *pgRouteRepo) Create(ctx context.Context, rt domain.Route) (domain.Route, error) {
	q := `
		INSERT INTO routes (origin, destination, distance_km, created_by_id)
		VALUES (@origin, @destination, @distance_km, @created_by_id)
		RETURNING ` + routeColumns

	args := pgx.NamedArgs{
		"origin":        rt.Origin,
		"destination":   rt.Destination,
		"distance_km":   rt.DistanceKm,
		"created_by_id": rt.CreatedByID,
	}

	result, err := scanRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Create: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgRouteRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	q := `SELECT ` + routeColumns + ` FROM routes WHERE id = @id`

	result, err := scanRoute(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.GetByID: %w", err)
	}
	return result, nil
}

const routeFilterWhere = `
		WHERE (@created_by_id::uuid IS NULL OR created_by_id = @created_by_id)`

func (r *pgRouteRepo) List(ctx context.Context, f domain.RouteFilter, p domain.PaginationParams) ([]domain.Route, int64, error) {
	args := pgx.NamedArgs{"created_by_id": f.CreatedByID}

	total, err := count(ctx, r.db, `SELECT count(*) FROM routes`+routeFilterWhere, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: count: %w", err)
	}

	q := `SELECT ` + routeColumns + ` FROM routes` + routeFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pageArgs(args, p))
	if err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: %w", err)
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.RouteRepo.List: scan: %w", err)
		}
		routes = append(routes, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.RouteRepo.List: rows: %w", err)
	}
	return routes, total, nil
}

func (r *pgRouteRepo) Update(ctx context.Context, rt domain.Route) (domain.Route, error) {
	q := `
		UPDATE routes
		SET origin      = @origin,
		    destination = @destination,
		    distance_km = @distance_km
		WHERE id = @id
		RETURNING ` + routeColumns

	args := pgx.NamedArgs{
		"id":          rt.ID,
		"origin":      rt.Origin,
		"destination": rt.Destination,
		"distance_km": rt.DistanceKm,
	}

	result, err := scanRoute(r.db.QueryRow(ctx, q, args))
	if err != nil {
		return domain.Route{}, fmt.Errorf("repo.RouteRepo.Update: %w", mapWriteError(err))
	}
	return result, nil
}

func (r *pgRouteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM routes WHERE id = @id`, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", mapDeleteError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.RouteRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

func scanRoute(s scanner) (domain.Route, error) {
	var (
		rt          domain.Route
		id, creator pgtype.UUID
		distance    pgtype.Float8
	)
	if err := s.Scan(&id, &rt.Origin, &rt.Destination, &distance, &creator, &rt.CreatedAt); err != nil {
		return domain.Route{}, notFound(err)
	}
	rt.ID = uuid.UUID(id.Bytes)
	rt.CreatedByID = uuid.UUID(creator.Bytes)
	if distance.Valid {
		d := distance.Float64
		rt.DistanceKm = &d
	}
	return rt, nil
}
