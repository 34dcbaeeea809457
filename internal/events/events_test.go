package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
)

type mockPublisher struct {
	PublishFn func(ctx context.Context, e domain.Event) error
	got       []domain.Event
}

var _ Publisher = (*mockPublisher)(nil)

func (m *mockPublisher) Publish(ctx context.Context, e domain.Event) error {
	m.got = append(m.got, e)
	if m.PublishFn != nil {
		return m.PublishFn(ctx, e)
	}
	return nil
}

func testEvent() domain.Event {
	seats := 2
	return domain.Event{
		Type:           domain.EventBookingReserved,
		TripID:         uuid.New(),
		Status:         string(domain.BookingConfirmed),
		AvailableSeats: &seats,
		OccurredAt:     time.Now().UTC(),
	}
}

func TestLogPublisher_WritesEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	e := testEvent()

	require.NoError(t, p.Publish(context.Background(), e))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "event", line["msg"])
	assert.Equal(t, "booking.reserved", line["type"])
	assert.Equal(t, e.TripID.String(), line["trip_id"])
	assert.EqualValues(t, 2, line["available_seats"])
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	errBroker := errors.New("broker down")
	failing := &mockPublisher{PublishFn: func(context.Context, domain.Event) error { return errBroker }}
	ok := &mockPublisher{}

	err := Multi{failing, ok}.Publish(context.Background(), testEvent())

	assert.ErrorIs(t, err, errBroker)
	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Publish(context.Background(), testEvent()))
}
