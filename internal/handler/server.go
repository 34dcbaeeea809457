// Package handler implements the HTTP layer of the carpool API: a chi router,
// request decoding and validation, and the mapping of domain errors onto
// status codes. Handlers are methods on Server, split into one file per
// resource, and depend only on the consumer-side interfaces declared here.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/middleware"
	"github.com/pkordes/carpool/backend/internal/service"
)

type UserServicer interface {
	Register(ctx context.Context, in service.NewUser) (domain.User, string, error)
	Login(ctx context.Context, email, password string) (domain.User, string, error)
	Create(ctx context.Context, caller domain.Principal, in service.NewUser) (domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error)
	Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch service.UserPatch) (domain.User, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

type VehicleServicer interface {
	Create(ctx context.Context, caller domain.Principal, v domain.Vehicle) (domain.Vehicle, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Vehicle, error)
	List(ctx context.Context, f domain.VehicleFilter, p domain.PaginationParams) ([]domain.Vehicle, int64, error)
	Update(ctx context.Context, caller domain.Principal, v domain.Vehicle) (domain.Vehicle, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

type RouteServicer interface {
	Create(ctx context.Context, caller domain.Principal, rt domain.Route) (domain.Route, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Route, error)
	List(ctx context.Context, f domain.RouteFilter, p domain.PaginationParams) ([]domain.Route, int64, error)
	Update(ctx context.Context, caller domain.Principal, rt domain.Route) (domain.Route, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

// TripServicer covers trip CRUD and the lifecycle state machine.
type TripServicer interface {
	Create(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	List(ctx context.Context, f domain.TripFilter, p domain.PaginationParams) ([]domain.Trip, int64, error)
	Update(ctx context.Context, caller domain.Principal, trip domain.Trip) (domain.Trip, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
	Transition(ctx context.Context, caller domain.Principal, id uuid.UUID, next domain.TripStatus) (domain.Trip, error)
}

// BookingServicer is the seat reservation engine as seen by the HTTP layer.
type BookingServicer interface {
	Reserve(ctx context.Context, caller domain.Principal, tripID, passengerID uuid.UUID) (domain.TripPassenger, error)
	Release(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.TripPassenger, error)
	SetStatus(ctx context.Context, caller domain.Principal, id uuid.UUID, status domain.BookingStatus) (domain.TripPassenger, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.TripPassenger, error)
	List(ctx context.Context, f domain.TripPassengerFilter, p domain.PaginationParams) ([]domain.TripPassenger, int64, error)
	Manifest(ctx context.Context, caller domain.Principal, tripID uuid.UUID) ([]domain.ManifestRow, error)
}

type CreditCardServicer interface {
	Create(ctx context.Context, caller domain.Principal, in service.NewCreditCard) (domain.CreditCard, error)
	GetByID(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.CreditCard, error)
	List(ctx context.Context, caller domain.Principal, f domain.CreditCardFilter, p domain.PaginationParams) ([]domain.CreditCard, int64, error)
	Update(ctx context.Context, caller domain.Principal, card domain.CreditCard) (domain.CreditCard, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

type PaymentServicer interface {
	Create(ctx context.Context, caller domain.Principal, p domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.Payment, error)
	List(ctx context.Context, f domain.PaymentFilter, p domain.PaginationParams) ([]domain.Payment, int64, error)
	Update(ctx context.Context, caller domain.Principal, p domain.Payment) (domain.Payment, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
	Receipt(ctx context.Context, caller domain.Principal, id uuid.UUID) ([]byte, error)
}

type EvaluationServicer interface {
	Create(ctx context.Context, caller domain.Principal, e domain.Evaluation) (domain.Evaluation, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Evaluation, error)
	List(ctx context.Context, f domain.EvaluationFilter, p domain.PaginationParams) ([]domain.Evaluation, int64, error)
	Update(ctx context.Context, caller domain.Principal, e domain.Evaluation) (domain.Evaluation, error)
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

// PixServicer is the PIX checkout and its reconciliation entry points.
type PixServicer interface {
	CreateCheckout(ctx context.Context, caller domain.Principal, in service.PixCheckoutInput) (domain.PixCheckout, error)
	PaymentStatus(ctx context.Context, gatewayID string) (domain.GatewayPayment, error)
	HandleWebhook(ctx context.Context, signature, requestID, dataID string) error
	TestConnection(ctx context.Context, caller domain.Principal) (domain.PixQRCode, error)
}

// LiveServer upgrades a request to a WebSocket streaming one trip's events.
type LiveServer interface {
	ServeTrip(w http.ResponseWriter, r *http.Request, tripID uuid.UUID)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the business services the router dispatches to.
type Services struct {
	Users       UserServicer
	Vehicles    VehicleServicer
	Routes      RouteServicer
	Trips       TripServicer
	Bookings    BookingServicer
	CreditCards CreditCardServicer
	Payments    PaymentServicer
	Evaluations EvaluationServicer
	Pix         PixServicer
}

// Options configures the cross-cutting parts of the router.
type Options struct {
	Tokens middleware.TokenVerifier
	Live   LiveServer
	// Checks are pinged by /readyz, keyed by the name reported in the body.
	Checks map[string]Pinger
	// Metrics serves /metrics; Observer receives per-request observations.
	Metrics         http.Handler
	Observer        middleware.HTTPObserver
	CORSOrigins     []string
	MaxBodyBytes    int64
	LoginRatePerMin int
	Logger          *slog.Logger
}

// Server holds the dependencies shared by all handlers.
type Server struct {
	svc    Services
	opts   Options
	log    *slog.Logger
	errors errorHandler
}

// NewServer constructs a Server. Call Router to obtain the http.Handler.
func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.LoginRatePerMin <= 0 {
		opts.LoginRatePerMin = 20
	}
	return &Server{svc: svc, opts: opts, log: opts.Logger, errors: errorHandler{log: opts.Logger}}
}

// Router builds the chi router with every route and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(s.log))
	if s.opts.Observer != nil {
		r.Use(middleware.NewMetricsHandler(s.opts.Observer))
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(s.opts.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(s.opts.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.getHealth)
	r.Get("/readyz", s.getReady)
	r.Get("/openapi.yaml", s.getOpenAPI)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRateLimiter(s.opts.LoginRatePerMin))
		r.Post("/auth/register", s.register)
		r.Post("/auth/login", s.login)
	})
	r.Post("/payments/webhook", s.paymentWebhook)
	if s.opts.Live != nil {
		r.Get("/trips/{id}/live", s.tripLive)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthenticator(s.opts.Tokens))

		r.Get("/auth/me", s.me)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.With(middleware.RequireRole(domain.RoleAdmin)).Post("/", s.createUser)
			r.Get("/{id}", s.getUser)
			r.Put("/{id}", s.updateUser)
			r.With(middleware.RequireRole(domain.RoleAdmin)).Delete("/{id}", s.deleteUser)
		})

		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", s.listVehicles)
			r.Post("/", s.createVehicle)
			r.Get("/driver/{driverId}", s.listVehiclesByDriver)
			r.Get("/{id}", s.getVehicle)
			r.Put("/{id}", s.updateVehicle)
			r.Delete("/{id}", s.deleteVehicle)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Get("/", s.listRoutes)
			r.Post("/", s.createRoute)
			r.Get("/user/{createdById}", s.listRoutesByCreator)
			r.Get("/{id}", s.getRoute)
			r.Put("/{id}", s.updateRoute)
			r.Delete("/{id}", s.deleteRoute)
		})

		r.Route("/trips", func(r chi.Router) {
			r.Get("/", s.listTrips)
			r.With(middleware.RequireRole(domain.RoleDriver, domain.RoleAdmin)).Post("/", s.createTrip)
			r.Get("/driver/{driverId}", s.listTripsByDriver)
			r.Get("/status/{status}", s.listTripsByStatus)
			r.Get("/{id}", s.getTrip)
			r.Put("/{id}", s.updateTrip)
			r.Delete("/{id}", s.deleteTrip)
			r.Patch("/{id}/status", s.setTripStatus)
			r.Get("/{id}/manifest", s.getManifest)
		})

		r.Route("/trip-passengers", func(r chi.Router) {
			r.Get("/", s.listBookings)
			r.Post("/", s.reserveSeat)
			r.Get("/trip/{tripId}", s.listBookingsByTrip)
			r.Get("/passenger/{passengerId}", s.listBookingsByPassenger)
			r.Get("/{id}", s.getBooking)
			r.Put("/{id}", s.setBookingStatus)
			r.Patch("/{id}/cancel", s.cancelBooking)
			r.Delete("/{id}", s.deleteBooking)
		})

		r.Route("/credit-cards", func(r chi.Router) {
			r.Get("/", s.listCards)
			r.Post("/", s.createCard)
			r.Get("/user/{userId}", s.listCardsByUser)
			r.Get("/{id}", s.getCard)
			r.Put("/{id}", s.updateCard)
			r.Delete("/{id}", s.deleteCard)
		})

		r.Route("/payment-models", func(r chi.Router) {
			r.Get("/", s.listPayments)
			r.Post("/", s.createPayment)
			r.Get("/trip/{tripId}", s.listPaymentsByTrip)
			r.Get("/payer/{payerId}", s.listPaymentsByPayer)
			r.Get("/status/{status}", s.listPaymentsByStatus)
			r.Get("/{id}", s.getPayment)
			r.Put("/{id}", s.updatePayment)
			r.Delete("/{id}", s.deletePayment)
			r.Get("/{id}/receipt", s.getReceipt)
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Get("/", s.listEvaluations)
			r.Post("/", s.createEvaluation)
			r.Get("/trip/{tripId}", s.listEvaluationsByTrip)
			r.Get("/evaluated/{evaluatedId}", s.listEvaluationsByEvaluated)
			r.Get("/evaluator/{evaluatorId}", s.listEvaluationsByEvaluator)
			r.Get("/{id}", s.getEvaluation)
			r.Put("/{id}", s.updateEvaluation)
			r.Delete("/{id}", s.deleteEvaluation)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-pix-payment", s.createPixPayment)
			r.Get("/payment-status/{id}", s.getPaymentStatus)
			r.With(middleware.RequireRole(domain.RoleAdmin)).Get("/test-mercadopago", s.testMercadoPago)
		})
	})

	return r
}

// caller returns the authenticated principal. Routes behind the
// authenticator always have one.
func caller(r *http.Request) domain.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}
