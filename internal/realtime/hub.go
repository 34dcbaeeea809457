// Package realtime pushes trip events to WebSocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/carpool/backend/internal/domain"
)

const (
	authTimeout  = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 32
)

// TokenVerifier turns a bearer token into the caller it identifies.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// TripAccess decides whether caller may follow tripID's events. A non-nil
// error refuses the subscription.
type TripAccess interface {
	CanFollow(ctx context.Context, caller domain.Principal, tripID uuid.UUID) error
}

type subscriber struct {
	userID uuid.UUID
	send   chan []byte
}

// Hub keeps the live subscribers of each trip. It implements
// service.EventPublisher: every published event is forwarded to the
// subscribers of its trip. Slow subscribers lose messages rather than block
// the publisher.
type Hub struct {
	tokens   TokenVerifier
	access   TripAccess
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*subscriber]struct{}
}

// NewHub returns an empty Hub. Subscriptions are authenticated with tokens
// and authorized with access.
func NewHub(tokens TokenVerifier, access TripAccess, log *slog.Logger) *Hub {
	return &Hub{
		tokens: tokens,
		access: access,
		log:    log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Publish forwards e to every subscriber of e.TripID. It never blocks.
func (h *Hub) Publish(_ context.Context, e domain.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[e.TripID] {
		select {
		case s.send <- msg:
		default:
			h.log.Warn("dropping event for slow subscriber", "trip_id", e.TripID, "user_id", s.userID)
		}
	}
	return nil
}

// Subscribers returns how many connections follow tripID.
func (h *Hub) Subscribers(tripID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[tripID])
}

func (h *Hub) add(tripID uuid.UUID, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[tripID] == nil {
		h.subs[tripID] = make(map[*subscriber]struct{})
	}
	h.subs[tripID][s] = struct{}{}
}

func (h *Hub) remove(tripID uuid.UUID, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[tripID], s)
	if len(h.subs[tripID]) == 0 {
		delete(h.subs, tripID)
	}
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ServeTrip upgrades the request and streams tripID's events. The first
// client message must be {"type":"auth","token":"<jwt>"}, and the caller must
// pass the hub's TripAccess check. Anything else closes the connection with a
// policy violation.
func (h *Hub) ServeTrip(w http.ResponseWriter, r *http.Request, tripID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		closeWith(conn, websocket.ClosePolicyViolation, "authentication required")
		return
	}
	caller, err := h.tokens.Verify(auth.Token)
	if err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "invalid token")
		return
	}
	if err := h.access.CanFollow(r.Context(), caller, tripID); err != nil {
		h.log.Info("live subscription refused", "trip_id", tripID, "user_id", caller.UserID, "error", err)
		closeWith(conn, websocket.ClosePolicyViolation, "not a member of this trip")
		return
	}

	s := &subscriber{userID: caller.UserID, send: make(chan []byte, sendBuffer)}
	h.add(tripID, s)
	defer h.remove(tripID, s)
	h.log.Info("live subscriber connected", "trip_id", tripID, "user_id", caller.UserID)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// The reader only drains control frames and notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
