package service_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// memStore is an in-memory database for the booking engine. Transactions
// are serialised on txMu, standing in for the trip row lock, and a failed
// transaction restores the snapshot taken when it began.
type memStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	trips    map[uuid.UUID]domain.Trip
	bookings map[uuid.UUID]domain.TripPassenger
	payments map[uuid.UUID]domain.Payment
	charges  map[uuid.UUID]domain.PixCharge
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		trips:    map[uuid.UUID]domain.Trip{},
		bookings: map[uuid.UUID]domain.TripPassenger{},
		payments: map[uuid.UUID]domain.Payment{},
		charges:  map[uuid.UUID]domain.PixCharge{},
	}
}

// stamp returns strictly increasing timestamps so "oldest first" orderings
// are deterministic.
func (s *memStore) stamp() time.Time {
	s.seq++
	return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *memStore) tripRepo() *memTrips           { return &memTrips{s} }
func (s *memStore) passengerRepo() *memPassengers { return &memPassengers{s} }
func (s *memStore) paymentRepo() *memPayments     { return &memPayments{s} }
func (s *memStore) chargeRepo() *memCharges       { return &memCharges{s} }

// addTrip seeds an OPEN trip with every seat free.
func (s *memStore) addTrip(driverID uuid.UUID, seats int, departure time.Time, price float64) domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := domain.Trip{
		ID:             uuid.New(),
		DriverID:       driverID,
		RouteID:        uuid.New(),
		DepartureAt:    departure,
		TotalSeats:     seats,
		AvailableSeats: seats,
		PricePerPerson: price,
		Status:         domain.TripOpen,
		CreatedAt:      s.stamp(),
	}
	s.trips[t.ID] = t
	return t
}

func (s *memStore) trip(id uuid.UUID) domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[id]
}

func (s *memStore) booking(id uuid.UUID) domain.TripPassenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

// seatHolders counts PENDING and CONFIRMED bookings on a trip.
func (s *memStore) seatHolders(tripID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.TripID == tripID && b.Status.HoldsSeat() {
			n++
		}
	}
	return n
}

func (s *memStore) paymentsFor(transactionID string) []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.TransactionID == transactionID {
			out = append(out, p)
		}
	}
	return out
}

// ---- Transactor ----

type memTx struct {
	s *memStore
}

func (t memTx) WithinTx(_ context.Context, fn func(r repo.TxRepos) error) error {
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	trips, bookings := maps.Clone(t.s.trips), maps.Clone(t.s.bookings)
	payments, charges := maps.Clone(t.s.payments), maps.Clone(t.s.charges)
	t.s.mu.Unlock()

	err := fn(repo.TxRepos{
		Trips:      t.s.tripRepo(),
		Passengers: t.s.passengerRepo(),
		Payments:   t.s.paymentRepo(),
		PixCharges: t.s.chargeRepo(),
	})
	if err != nil {
		t.s.mu.Lock()
		t.s.trips, t.s.bookings, t.s.payments, t.s.charges = trips, bookings, payments, charges
		t.s.mu.Unlock()
		return fmt.Errorf("memTx.WithinTx: %w", err)
	}
	return nil
}

var _ repo.Transactor = memTx{}

// ---- TripRepo ----

type memTrips struct{ s *memStore }

func (m *memTrips) Create(_ context.Context, t domain.Trip) (domain.Trip, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t.ID = uuid.New()
	t.AvailableSeats = t.TotalSeats
	t.Status = domain.TripOpen
	t.CreatedAt = m.s.stamp()
	t.UpdatedAt = t.CreatedAt
	m.s.trips[t.ID] = t
	return t, nil
}

func (m *memTrips) GetByID(_ context.Context, id uuid.UUID) (domain.Trip, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memTrips) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.GetByID(ctx, id)
}

func (m *memTrips) List(_ context.Context, f domain.TripFilter, _ domain.PaginationParams) ([]domain.Trip, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Trip
	for _, t := range m.s.trips {
		if f.DriverID != nil && t.DriverID != *f.DriverID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (m *memTrips) Update(_ context.Context, t domain.Trip) (domain.Trip, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cur, ok := m.s.trips[t.ID]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	cur.RouteID, cur.VehicleID = t.RouteID, t.VehicleID
	cur.DepartureAt, cur.PricePerPerson = t.DepartureAt, t.PricePerPerson
	m.s.trips[t.ID] = cur
	return cur, nil
}

func (m *memTrips) AdjustAvailableSeats(_ context.Context, id uuid.UUID, delta int) (domain.Trip, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	n := t.AvailableSeats + delta
	if n < 0 || n > t.TotalSeats {
		return domain.Trip{}, fmt.Errorf("%w: available seats out of range", domain.ErrValidation)
	}
	t.AvailableSeats = n
	m.s.trips[id] = t
	return t, nil
}

func (m *memTrips) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TripStatus) (domain.Trip, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.trips[id]
	if !ok {
		return domain.Trip{}, domain.ErrNotFound
	}
	t.Status = status
	m.s.trips[id] = t
	return t, nil
}

func (m *memTrips) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.trips[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.s.trips, id)
	return nil
}

var _ repo.TripRepo = (*memTrips)(nil)

// ---- TripPassengerRepo ----

type memPassengers struct{ s *memStore }

func (m *memPassengers) Create(_ context.Context, tp domain.TripPassenger) (domain.TripPassenger, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if tp.Status.HoldsSeat() {
		for _, b := range m.s.bookings {
			if b.TripID == tp.TripID && b.PassengerID == tp.PassengerID && b.Status.HoldsSeat() {
				return domain.TripPassenger{}, domain.ErrDuplicateBooking
			}
		}
	}
	tp.ID = uuid.New()
	tp.CreatedAt = m.s.stamp()
	tp.UpdatedAt = tp.CreatedAt
	m.s.bookings[tp.ID] = tp
	return tp, nil
}

func (m *memPassengers) GetByID(_ context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b, ok := m.s.bookings[id]
	if !ok {
		return domain.TripPassenger{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memPassengers) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error) {
	return m.GetByID(ctx, id)
}

func (m *memPassengers) List(_ context.Context, f domain.TripPassengerFilter, _ domain.PaginationParams) ([]domain.TripPassenger, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.TripPassenger
	for _, b := range m.s.bookings {
		if f.TripID != nil && b.TripID != *f.TripID {
			continue
		}
		if f.PassengerID != nil && b.PassengerID != *f.PassengerID {
			continue
		}
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (m *memPassengers) HasActive(_ context.Context, tripID, passengerID uuid.UUID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, b := range m.s.bookings {
		if b.TripID == tripID && b.PassengerID == passengerID && b.Status.HoldsSeat() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPassengers) UpdateStatus(_ context.Context, id uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	b, ok := m.s.bookings[id]
	if !ok {
		return domain.TripPassenger{}, domain.ErrNotFound
	}
	b.Status = status
	m.s.bookings[id] = b
	return b, nil
}

func (m *memPassengers) CancelActiveByTrip(_ context.Context, tripID uuid.UUID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, b := range m.s.bookings {
		if b.TripID == tripID && b.Status.HoldsSeat() {
			b.Status = domain.BookingCanceled
			m.s.bookings[id] = b
			n++
		}
	}
	return n, nil
}

func (m *memPassengers) Manifest(_ context.Context, tripID uuid.UUID) ([]domain.ManifestRow, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.ManifestRow
	for _, b := range m.s.bookings {
		if b.TripID == tripID {
			out = append(out, domain.ManifestRow{
				TripPassengerID: b.ID,
				PassengerID:     b.PassengerID,
				Status:          b.Status,
				BookedAt:        b.CreatedAt,
			})
		}
	}
	slices.SortFunc(out, func(a, b domain.ManifestRow) int { return a.BookedAt.Compare(b.BookedAt) })
	return out, nil
}

func (m *memPassengers) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.bookings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.s.bookings, id)
	return nil
}

var _ repo.TripPassengerRepo = (*memPassengers)(nil)

// ---- PaymentRepo ----

type memPayments struct{ s *memStore }

func (m *memPayments) Create(_ context.Context, p domain.Payment) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.payments {
		if p.TransactionID != "" && existing.TransactionID == p.TransactionID {
			return domain.Payment{}, fmt.Errorf("%w: duplicate transaction id", domain.ErrConflict)
		}
	}
	p.ID = uuid.New()
	m.s.payments[p.ID] = p
	return p, nil
}

func (m *memPayments) GetByID(_ context.Context, id uuid.UUID) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPayments) GetByTransactionID(_ context.Context, transactionID string) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.payments {
		if p.TransactionID == transactionID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (m *memPayments) List(_ context.Context, _ domain.PaymentFilter, _ domain.PaginationParams) ([]domain.Payment, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := slices.Collect(maps.Values(m.s.payments))
	return out, int64(len(out)), nil
}

func (m *memPayments) Update(_ context.Context, p domain.Payment) (domain.Payment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.payments[p.ID]; !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	m.s.payments[p.ID] = p
	return p, nil
}

func (m *memPayments) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.payments, id)
	return nil
}

var _ repo.PaymentRepo = (*memPayments)(nil)

// ---- PixChargeRepo ----

type memCharges struct{ s *memStore }

func (m *memCharges) Create(_ context.Context, c domain.PixCharge) (domain.PixCharge, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = m.s.stamp()
	m.s.charges[c.ID] = c
	return c, nil
}

func (m *memCharges) GetByGatewayID(_ context.Context, gatewayID string) (domain.PixCharge, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.charges {
		if c.GatewayPaymentID == gatewayID {
			return c, nil
		}
	}
	return domain.PixCharge{}, domain.ErrNotFound
}

func (m *memCharges) GetByGatewayIDForUpdate(ctx context.Context, gatewayID string) (domain.PixCharge, error) {
	return m.GetByGatewayID(ctx, gatewayID)
}

func (m *memCharges) UpdateStatus(_ context.Context, id uuid.UUID, status domain.GatewayStatus, reconciled bool) (domain.PixCharge, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.charges[id]
	if !ok {
		return domain.PixCharge{}, domain.ErrNotFound
	}
	c.Status = status
	if reconciled {
		at := m.s.stamp()
		c.ReconciledAt = &at
	}
	m.s.charges[id] = c
	return c, nil
}

func (m *memCharges) ListDue(_ context.Context, now time.Time, limit int) ([]domain.PixCharge, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.PixCharge
	for _, c := range m.s.charges {
		if c.ReconciledAt == nil && !c.NextCheckAt.After(now) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.PixCharge) int {
		if n := a.NextCheckAt.Compare(b.NextCheckAt); n != 0 {
			return n
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCharges) ScheduleCheck(_ context.Context, id uuid.UUID, at time.Time, failed bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.charges[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.NextCheckAt = at
	if failed {
		c.CheckFailures++
	} else {
		c.CheckFailures = 0
	}
	m.s.charges[id] = c
	return nil
}

// charge returns the stored charge for a gateway payment id.
func (s *memStore) charge(gatewayID string) domain.PixCharge {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.charges {
		if c.GatewayPaymentID == gatewayID {
			return c
		}
	}
	return domain.PixCharge{}
}

var _ repo.PixChargeRepo = (*memCharges)(nil)

// ---- collaborators ----

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// countingRecorder tallies reservation outcomes.
type countingRecorder struct {
	mu           sync.Mutex
	reservations map[string]int
	releases     int
	transitions  []domain.TripStatus
	gateway      map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{reservations: map[string]int{}, gateway: map[string]int{}}
}

func (r *countingRecorder) Reservation(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[outcome]++
}

func (r *countingRecorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
}

func (r *countingRecorder) TripTransition(to domain.TripStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, to)
}

func (r *countingRecorder) GatewayCall(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateway[op+":"+outcome]++
}

func principal(id uuid.UUID, role domain.Role) domain.Principal {
	return domain.Principal{UserID: id, Email: id.String()[:8] + "@example.com", Role: role}
}
