package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

func TestTripPassengerRepo_Create_DuplicateActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := repo.NewTripRepo(f.tx).Create(ctx, f.trip(3))
	require.NoError(t, err)
	r := repo.NewTripPassengerRepo(f.tx)

	booking := domain.TripPassenger{TripID: trip.ID, PassengerID: f.rider.ID, Status: domain.BookingPending}
	_, err = r.Create(ctx, booking)
	require.NoError(t, err)

	_, err = r.Create(ctx, booking)

	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)
}

func TestTripPassengerRepo_HasActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := repo.NewTripRepo(f.tx).Create(ctx, f.trip(3))
	require.NoError(t, err)
	r := repo.NewTripPassengerRepo(f.tx)

	active, err := r.HasActive(ctx, trip.ID, f.rider.ID)
	require.NoError(t, err)
	assert.False(t, active)

	tp, err := r.Create(ctx, domain.TripPassenger{TripID: trip.ID, PassengerID: f.rider.ID, Status: domain.BookingConfirmed})
	require.NoError(t, err)
	active, err = r.HasActive(ctx, trip.ID, f.rider.ID)
	require.NoError(t, err)
	assert.True(t, active)

	_, err = r.UpdateStatus(ctx, tp.ID, domain.BookingCanceled)
	require.NoError(t, err)
	active, err = r.HasActive(ctx, trip.ID, f.rider.ID)
	require.NoError(t, err)
	assert.False(t, active, "canceled bookings do not count")
}

func TestTripPassengerRepo_CancelActiveByTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := repo.NewTripRepo(f.tx).Create(ctx, f.trip(3))
	require.NoError(t, err)
	r := repo.NewTripPassengerRepo(f.tx)

	_, err = r.Create(ctx, domain.TripPassenger{TripID: trip.ID, PassengerID: f.rider.ID, Status: domain.BookingPending})
	require.NoError(t, err)
	_, err = r.Create(ctx, domain.TripPassenger{TripID: trip.ID, PassengerID: f.driver.ID, Status: domain.BookingCanceled})
	require.NoError(t, err)

	n, err := r.CancelActiveByTrip(ctx, trip.ID)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTripPassengerRepo_Manifest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := repo.NewTripRepo(f.tx).Create(ctx, f.trip(3))
	require.NoError(t, err)
	r := repo.NewTripPassengerRepo(f.tx)

	tp, err := r.Create(ctx, domain.TripPassenger{TripID: trip.ID, PassengerID: f.rider.ID, Status: domain.BookingConfirmed})
	require.NoError(t, err)

	rows, err := r.Manifest(ctx, trip.ID)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tp.ID, rows[0].TripPassengerID)
	assert.Equal(t, f.rider.Name, rows[0].PassengerName)
	assert.Equal(t, f.rider.Email, rows[0].PassengerEmail)
	assert.Equal(t, domain.BookingConfirmed, rows[0].Status)
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trips := repo.NewTripRepo(f.tx)
	trip, err := trips.Create(ctx, f.trip(2))
	require.NoError(t, err)

	// pgx.Tx.Begin opens a savepoint, so the inner transaction nests.
	err = repo.NewTransactor(f.tx).WithinTx(ctx, func(r repo.TxRepos) error {
		locked, err := r.Trips.GetByIDForUpdate(ctx, trip.ID)
		require.NoError(t, err)
		_, err = r.Trips.AdjustAvailableSeats(ctx, locked.ID, -1)
		require.NoError(t, err)
		return domain.ErrTripFull
	})
	require.ErrorIs(t, err, domain.ErrTripFull)

	got, err := trips.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableSeats, "seat change must roll back with the savepoint")
}

func TestTransactor_Commits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trips := repo.NewTripRepo(f.tx)
	trip, err := trips.Create(ctx, f.trip(2))
	require.NoError(t, err)

	err = repo.NewTransactor(f.tx).WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Passengers.Create(ctx, domain.TripPassenger{
			TripID: trip.ID, PassengerID: f.rider.ID, Status: domain.BookingConfirmed,
		}); err != nil {
			return err
		}
		_, err := r.Trips.AdjustAvailableSeats(ctx, trip.ID, -1)
		return err
	})
	require.NoError(t, err)

	got, err := trips.GetByID(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableSeats)
}
