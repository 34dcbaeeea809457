package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/handler"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create     func(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error)
	getByID    func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	list       func(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update     func(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error)
	delete     func(ctx context.Context, caller domain.Principal, id uuid.UUID) error
	transition func(ctx context.Context, caller domain.Principal, id uuid.UUID, next domain.TripStatus) (domain.Trip, error)
}

var _ handler.TripServicer = (*mockTripServicer)(nil)

func (m *mockTripServicer) Create(ctx context.Context, c domain.Principal, t domain.Trip) (domain.Trip, error) {
	return m.create(ctx, c, t)
}
func (m *mockTripServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripServicer) List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.list(ctx, f, p)
}
func (m *mockTripServicer) Update(ctx context.Context, c domain.Principal, t domain.Trip) (domain.Trip, error) {
	return m.update(ctx, c, t)
}
func (m *mockTripServicer) Delete(ctx context.Context, c domain.Principal, id uuid.UUID) error {
	return m.delete(ctx, c, id)
}
func (m *mockTripServicer) Transition(ctx context.Context, c domain.Principal, id uuid.UUID, next domain.TripStatus) (domain.Trip, error) {
	return m.transition(ctx, c, id, next)
}

func tripFixture() domain.Trip {
	return domain.Trip{
		ID:             uuid.New(),
		DriverID:       driverCaller.UserID,
		RouteID:        uuid.New(),
		DepartureAt:    time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		TotalSeats:     4,
		AvailableSeats: 4,
		PricePerPerson: 25,
		Status:         domain.TripOpen,
	}
}

// ---- POST /trips -----------------------------------------------------------

func TestCreateTrip_201(t *testing.T) {
	fixture := tripFixture()
	var got domain.Trip
	var gotCaller domain.Principal
	svc := &mockTripServicer{
		create: func(_ context.Context, c domain.Principal, trip domain.Trip) (domain.Trip, error) {
			got, gotCaller = trip, c
			return fixture, nil
		},
	}

	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodPost, "/trips", "driver", jsonBody(t, map[string]any{
		"route_id":         fixture.RouteID,
		"departure_at":     fixture.DepartureAt,
		"total_seats":      4,
		"price_per_person": 25,
	}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp domain.Trip
	decodeInto(t, rec, &resp)
	assert.Equal(t, fixture.ID, resp.ID)
	assert.Equal(t, domain.TripOpen, resp.Status)
	assert.Equal(t, driverCaller, gotCaller)
	assert.Equal(t, uuid.Nil, got.DriverID, "driver defaults to the caller in the service")
	assert.Equal(t, 4, got.TotalSeats)
}

func TestCreateTrip_403_StandardUser(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodPost, "/trips", "rider",
		jsonBody(t, map[string]any{"route_id": uuid.New(), "departure_at": time.Now(), "total_seats": 2}))

	require.Equal(t, http.StatusForbidden, rec.Code)
	decodeError(t, rec)
}

func TestCreateTrip_400_FieldErrors(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodPost, "/trips", "driver",
		jsonBody(t, map[string]any{"total_seats": 0}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Contains(t, body.Details, "route_id")
	assert.Contains(t, body.Details, "departure_at")
	assert.Contains(t, body.Details, "total_seats")
}

func TestCreateTrip_400_UnknownField(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodPost, "/trips", "driver",
		jsonBody(t, map[string]any{"route_id": uuid.New(), "departure_at": time.Now(), "total_seats": 2, "status": "FINISHED"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "unknown field")
}

func TestCreateTrip_400_ServiceValidation(t *testing.T) {
	svc := &mockTripServicer{
		create: func(context.Context, domain.Principal, domain.Trip) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("%w: price_per_person must not be negative", domain.ErrValidation)
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodPost, "/trips", "driver",
		jsonBody(t, map[string]any{"route_id": uuid.New(), "departure_at": time.Now(), "total_seats": 2}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price_per_person must not be negative", decodeError(t, rec).Message)
}

// ---- GET /trips ------------------------------------------------------------

func TestListTrips_Pagination(t *testing.T) {
	var gotPage domain.PaginationParams
	svc := &mockTripServicer{
		list: func(_ context.Context, _ domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error) {
			gotPage = p
			return []domain.Trip{tripFixture()}, 41, nil
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodGet, "/trips?page=3&limit=500", "rider", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PaginationParams{Page: 3, Limit: domain.MaxPageLimit}, gotPage)

	var body struct {
		Data       []domain.Trip     `json:"data"`
		Pagination domain.Pagination `json:"pagination"`
	}
	decodeInto(t, rec, &body)
	assert.Len(t, body.Data, 1)
	assert.Equal(t, domain.Pagination{Page: 3, Limit: 100, Total: 41}, body.Pagination)
}

func TestListTrips_400_BadPage(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodGet, "/trips?page=abc", "rider", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page must be an integer", decodeError(t, rec).Message)
}

func TestListTripsByStatus(t *testing.T) {
	var got domain.TripFilter
	svc := &mockTripServicer{
		list: func(_ context.Context, f domain.TripFilter, _ domain.PaginationParams) ([]domain.Trip, int64, error) {
			got = f
			return nil, 0, nil
		},
	}
	h := newRouter(handler.Services{Trips: svc})

	rec := do(t, h, http.MethodGet, "/trips/status/OPEN", "rider", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.Status)
	assert.Equal(t, domain.TripOpen, *got.Status)
	assert.JSONEq(t, `{"data":[],"pagination":{"page":1,"limit":20,"total":0}}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/trips/status/PARKED", "rider", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- GET /trips/{id} -------------------------------------------------------

func TestGetTrip_404(t *testing.T) {
	svc := &mockTripServicer{
		getByID: func(context.Context, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: repo.TripRepo.GetByID: %w", domain.ErrNotFound)
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodGet, "/trips/"+uuid.NewString(), "rider", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeError(t, rec).Message)
}

func TestGetTrip_400_InvalidID(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodGet, "/trips/not-a-uuid", "rider", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid id: must be a UUID", decodeError(t, rec).Message)
}

func TestGetTrip_500_HidesInternalError(t *testing.T) {
	svc := &mockTripServicer{
		getByID: func(context.Context, uuid.UUID) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("repo.TripRepo.GetByID: %w", errBoom)
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodGet, "/trips/"+uuid.NewString(), "rider", nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Message)
}

// ---- PUT /trips/{id} -------------------------------------------------------

func TestUpdateTrip_OnlyEditableFields(t *testing.T) {
	id := uuid.New()
	var got domain.Trip
	svc := &mockTripServicer{
		update: func(_ context.Context, _ domain.Principal, trip domain.Trip) (domain.Trip, error) {
			got = trip
			return trip, nil
		},
	}
	h := newRouter(handler.Services{Trips: svc})
	routeID := uuid.New()

	rec := do(t, h, http.MethodPut, "/trips/"+id.String(), "driver", jsonBody(t, map[string]any{
		"route_id": routeID, "departure_at": time.Now().Add(time.Hour), "price_per_person": 30,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, got.ID)
	assert.Equal(t, routeID, got.RouteID)
	assert.Equal(t, 30.0, got.PricePerPerson)

	rec = do(t, h, http.MethodPut, "/trips/"+id.String(), "driver", jsonBody(t, map[string]any{
		"route_id": routeID, "departure_at": time.Now(), "total_seats": 9,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---- DELETE /trips/{id} ----------------------------------------------------

func TestDeleteTrip(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"referenced by bookings", fmt.Errorf("%w: trip has bookings", domain.ErrConflict), http.StatusConflict},
		{"not the driver", fmt.Errorf("%w: insufficient permission", domain.ErrForbidden), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockTripServicer{
				delete: func(context.Context, domain.Principal, uuid.UUID) error { return tc.err },
			}
			rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodDelete, "/trips/"+uuid.NewString(), "driver", nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

// ---- PATCH /trips/{id}/status ----------------------------------------------

func TestSetTripStatus_200(t *testing.T) {
	fixture := tripFixture()
	var gotNext domain.TripStatus
	svc := &mockTripServicer{
		transition: func(_ context.Context, _ domain.Principal, id uuid.UUID, next domain.TripStatus) (domain.Trip, error) {
			gotNext = next
			fixture.Status = next
			fixture.AvailableSeats = fixture.TotalSeats
			return fixture, nil
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodPatch, "/trips/"+fixture.ID.String()+"/status", "driver",
		jsonBody(t, map[string]string{"status": "CANCELED"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TripCanceled, gotNext)
	var resp domain.Trip
	decodeInto(t, rec, &resp)
	assert.Equal(t, domain.TripCanceled, resp.Status)
}

func TestSetTripStatus_409_InvalidTransition(t *testing.T) {
	svc := &mockTripServicer{
		transition: func(context.Context, domain.Principal, uuid.UUID, domain.TripStatus) (domain.Trip, error) {
			return domain.Trip{}, fmt.Errorf("service.TripService.Transition: %w: FINISHED -> OPEN", domain.ErrInvalidTransition)
		},
	}
	rec := do(t, newRouter(handler.Services{Trips: svc}), http.MethodPatch, "/trips/"+uuid.NewString()+"/status", "driver",
		jsonBody(t, map[string]string{"status": "OPEN"}))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid status transition: FINISHED -> OPEN", decodeError(t, rec).Message)
}

func TestSetTripStatus_400_UnknownStatus(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Trips: &mockTripServicer{}}), http.MethodPatch, "/trips/"+uuid.NewString()+"/status", "driver",
		jsonBody(t, map[string]string{"status": "PARKED"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "status")
}
