// Package main is the entry point for the carpool API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for goose
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pkordes/carpool/backend/internal/auth"
	"github.com/pkordes/carpool/backend/internal/cache"
	"github.com/pkordes/carpool/backend/internal/config"
	"github.com/pkordes/carpool/backend/internal/events"
	"github.com/pkordes/carpool/backend/internal/gateway/mercadopago"
	"github.com/pkordes/carpool/backend/internal/handler"
	"github.com/pkordes/carpool/backend/internal/metrics"
	"github.com/pkordes/carpool/backend/internal/realtime"
	"github.com/pkordes/carpool/backend/internal/receipt"
	"github.com/pkordes/carpool/backend/internal/repo"
	"github.com/pkordes/carpool/backend/internal/service"
	"github.com/pkordes/carpool/backend/migrations"
)

const webhookTolerance = 5 * time.Minute

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---------------------------------------------------------
	if cfg.MigrateOnStart {
		if err := migrate(ctx, cfg.DatabaseURL, logger); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	checks := map[string]handler.Pinger{"postgres": pool}

	// --- Repositories -----------------------------------------------------
	var (
		tx          = repo.NewTransactor(pool)
		users       = repo.NewUserRepo(pool)
		vehicles    = repo.NewVehicleRepo(pool)
		routes      = repo.NewRouteRepo(pool)
		trips       = repo.NewTripRepo(pool)
		passengers  = repo.NewTripPassengerRepo(pool)
		creditCards = repo.NewCreditCardRepo(pool)
		payments    = repo.NewPaymentRepo(pool)
		evaluations = repo.NewEvaluationRepo(pool)
		pixCharges  = repo.NewPixChargeRepo(pool)
	)

	// --- Cross-cutting ----------------------------------------------------
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	m := metrics.New()
	hub := realtime.NewHub(tokens, service.NewTripAccess(trips, passengers), logger)

	broker, closeBroker, err := newBroker(cfg, logger)
	if err != nil {
		slog.Error("failed to connect to event broker", "broker", cfg.EventBroker, "error", err)
		os.Exit(1)
	}
	defer closeBroker()

	deps := service.Deps{
		Publisher: events.Multi{broker, hub},
		Recorder:  m,
		Logger:    logger,
	}

	pixCfg := service.PixConfig{HoldTTL: cfg.PixHoldTTL}
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		statusCache := cache.NewStatusCache(rdb)
		pixCfg.Cache = statusCache
		checks["redis"] = statusCache
		slog.Info("payment status cache enabled")
	}
	if cfg.MercadoPagoWebhookSecret != "" {
		pixCfg.Verifier = mercadopago.NewSignatureVerifier(cfg.MercadoPagoWebhookSecret, webhookTolerance)
	} else {
		slog.Warn("MERCADOPAGO_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	gateway, err := mercadopago.NewClient(cfg.MercadoPagoAccessToken,
		mercadopago.WithBaseURL(cfg.MercadoPagoBaseURL),
		mercadopago.WithRetries(uint64(cfg.GatewayMaxRetries), 200*time.Millisecond),
	)
	if err != nil {
		slog.Error("failed to configure payment gateway", "error", err)
		os.Exit(1)
	}

	// --- Services ---------------------------------------------------------
	bookingSvc := service.NewBookingService(tx, trips, passengers, deps)
	pixSvc := service.NewPixService(gateway, bookingSvc, tx, pixCharges, pixCfg, deps)

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		slog.Warn("time zone data unavailable, receipts use UTC", "error", err)
		saoPaulo = time.UTC
	}

	svc := handler.Services{
		Users:       service.NewUserService(users, tokens),
		Vehicles:    service.NewVehicleService(vehicles),
		Routes:      service.NewRouteService(routes),
		Trips:       service.NewTripService(tx, trips, vehicles, deps),
		Bookings:    bookingSvc,
		CreditCards: service.NewCreditCardService(creditCards),
		Payments:    service.NewPaymentService(payments, creditCards, trips, users, receipt.Renderer{Location: saoPaulo}),
		Evaluations: service.NewEvaluationService(evaluations),
		Pix:         pixSvc,
	}

	go pixSvc.RunReconciler(ctx, cfg.ReconcileInterval)

	// --- Router -----------------------------------------------------------
	router := handler.NewServer(svc, handler.Options{
		Tokens:          tokens,
		Live:            hub,
		Checks:          checks,
		Metrics:         m.Handler(),
		Observer:        m,
		CORSOrigins:     cfg.CORSOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		LoginRatePerMin: cfg.LoginRatePerMin,
		Logger:          logger,
	}).Router()

	// --- HTTP Server ------------------------------------------------------
	// WriteTimeout stays zero: /trips/{id}/live holds WebSocket connections open.
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, "carpool-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "event_broker", cfg.EventBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies pending goose migrations over a short-lived database/sql
// handle; goose does not work with a pgx pool.
func migrate(ctx context.Context, dsn string, log *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	log.Info("migrations applied", "count", n)
	return nil
}

// newBroker builds the event publisher selected by EVENT_BROKER. The returned
// func releases its connection.
func newBroker(cfg config.Config, log *slog.Logger) (events.Publisher, func(), error) {
	logPub := events.NewLogPublisher(log)
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		p, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return events.Multi{logPub, p}, closer(p, log), nil
	case config.BrokerKafka:
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return events.Multi{logPub, p}, closer(p, log), nil
	}
	return logPub, func() {}, nil
}

func closer(c io.Closer, log *slog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn("closing event broker", "error", err)
		}
	}
}
