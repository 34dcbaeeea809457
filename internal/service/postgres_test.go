package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
	"github.com/pkordes/carpool/backend/internal/service"
	"github.com/pkordes/carpool/backend/migrations"
	"github.com/pkordes/carpool/backend/testutil"
)

// migrate brings the TEST_DATABASE_URL schema up to date, skipping the test
// when no database is configured.
func migrate(t *testing.T) {
	t.Helper()
	_, err := migrations.Up(context.Background(), testutil.NewSQLDB(t))
	require.NoError(t, err)
}

// TestBookingService_Reserve_LastSeatPostgres races riders for the only seat
// of a trip through real transactions and row locks. The rows are committed,
// so the test removes them when it ends.
func TestBookingService_Reserve_LastSeatPostgres(t *testing.T) {
	migrate(t)
	pool := testutil.NewPool(t)
	ctx := context.Background()

	users := repo.NewUserRepo(pool)
	newUser := func(role domain.Role) domain.User {
		u, err := users.Create(ctx, domain.User{
			Name: "Race " + string(role), Email: uuid.NewString() + "@example.com",
			PasswordHash: "x", Role: role, Active: true,
		})
		require.NoError(t, err)
		return u
	}
	driver := newUser(domain.RoleDriver)
	route, err := repo.NewRouteRepo(pool).Create(ctx, domain.Route{
		Origin: "Campinas", Destination: "Jundiaí", CreatedByID: driver.ID,
	})
	require.NoError(t, err)
	trips := repo.NewTripRepo(pool)
	trip, err := trips.Create(ctx, domain.Trip{
		DriverID:       driver.ID,
		RouteID:        route.ID,
		DepartureAt:    time.Now().Add(48 * time.Hour),
		TotalSeats:     1,
		PricePerPerson: 18,
	})
	require.NoError(t, err)

	const riders = 8
	riderIDs := make([]uuid.UUID, riders)
	for i := range riderIDs {
		riderIDs[i] = newUser(domain.RoleStandard).ID
	}
	t.Cleanup(func() {
		cleanupRace(t, pool, trip.ID, route.ID, append(riderIDs, driver.ID))
	})

	svc := service.NewBookingService(repo.NewTransactor(pool), trips, repo.NewTripPassengerRepo(pool), service.Deps{})

	errs := make([]error, riders)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range riderIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Reserve(ctx, principal(id, domain.RoleStandard), trip.ID, uuid.Nil)
		}()
	}
	close(start)
	wg.Wait()

	ok, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrTripFull):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one rider gets the seat")
	assert.Equal(t, riders-1, full)

	var available, total, active int
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT t.available_seats, t.total_seats,
		       (SELECT count(*) FROM trip_passengers p
		         WHERE p.trip_id = t.id AND p.status IN ('PENDING', 'CONFIRMED'))
		  FROM trips t WHERE t.id = $1`, trip.ID).Scan(&available, &total, &active))
	assert.Equal(t, total, available+active, "available %d + active %d != total %d", available, active, total)
	assert.Zero(t, available)
}

func cleanupRace(t *testing.T, pool *pgxpool.Pool, tripID, routeID uuid.UUID, userIDs []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	for _, q := range []struct {
		sql string
		arg any
	}{
		{`DELETE FROM trip_passengers WHERE trip_id = $1`, tripID},
		{`DELETE FROM trips WHERE id = $1`, tripID},
		{`DELETE FROM routes WHERE id = $1`, routeID},
		{`DELETE FROM users WHERE id = ANY($1)`, userIDs},
	} {
		if _, err := pool.Exec(ctx, q.sql, q.arg); err != nil {
			t.Errorf("cleanup %q: %v", q.sql, err)
		}
	}
}

func TestUserService_EnsureAdminPostgres(t *testing.T) {
	migrate(t)
	users := repo.NewUserRepo(testutil.NewTx(t))
	svc := service.NewUserService(users, fakeIssuer{})
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	in := service.NewUser{Name: "Ops", Email: email, Password: "first-pass"}

	created, isNew, err := svc.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, domain.RoleAdmin, created.Role)

	again, isNew, err := svc.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.False(t, isNew, "a second run reuses the account")
	assert.Equal(t, created.ID, again.ID)

	in.Password = "second-pass"
	_, _, err = svc.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, email, "second-pass")
	assert.NoError(t, err)
	_, _, err = svc.Login(ctx, email, "first-pass")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
