package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

const (
	defaultPixDescription = "Carona VIP - Pagamento PIX"
	reconcileBatchSize    = 100

	finalStatusTTL   = 24 * time.Hour
	pendingStatusTTL = 5 * time.Second

	pendingRecheck = time.Minute
)

// PaymentGateway is the external PIX provider. Implementations retry
// transient failures themselves and wrap everything else in domain.ErrGateway.
type PaymentGateway interface {
	CreatePix(ctx context.Context, req domain.PixRequest) (domain.PixQRCode, error)
	GetPayment(ctx context.Context, id string) (domain.GatewayPayment, error)
}

// StatusCache keeps recent gateway answers so status polling does not hit
// the gateway on every request.
type StatusCache interface {
	Get(ctx context.Context, id string) (domain.GatewayPayment, bool, error)
	Set(ctx context.Context, p domain.GatewayPayment, ttl time.Duration) error
}

// WebhookVerifier authenticates a gateway notification.
type WebhookVerifier interface {
	Verify(signature, requestID, dataID string) error
}

// PixCheckoutInput is a request to pay by PIX, optionally for a seat.
type PixCheckoutInput struct {
	Amount      *float64
	Description string
	PayerEmail  string
	PayerCPF    string
	TripID      *uuid.UUID
}

// PixService creates PIX charges and reconciles their outcome with seat holds
// and payment records. The gateway is never called while a database
// transaction is open.
type PixService struct {
	gateway  PaymentGateway
	cache    StatusCache
	verifier WebhookVerifier
	bookings *BookingService
	tx       repo.Transactor
	charges  repo.PixChargeRepo
	deps     Deps
	holdTTL  time.Duration
	now      func() time.Time
}

// PixConfig holds the optional collaborators of a PixService. A nil Cache
// disables caching and a nil Verifier accepts every webhook.
type PixConfig struct {
	Cache    StatusCache
	Verifier WebhookVerifier
	HoldTTL  time.Duration
}

// NewPixService constructs a PixService.
func NewPixService(gateway PaymentGateway, bookings *BookingService, tx repo.Transactor, charges repo.PixChargeRepo, cfg PixConfig, deps Deps) *PixService {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 30 * time.Minute
	}
	return &PixService{
		gateway:  gateway,
		cache:    cfg.Cache,
		verifier: cfg.Verifier,
		bookings: bookings,
		tx:       tx,
		charges:  charges,
		deps:     deps.withDefaults(),
		holdTTL:  cfg.HoldTTL,
		now:      time.Now,
	}
}

// CreateCheckout charges the caller by PIX. With a trip, a seat is held as a
// PENDING booking first and the amount defaults to the trip price; the hold
// is released again if the gateway call fails.
func (s *PixService) CreateCheckout(ctx context.Context, caller domain.Principal, in PixCheckoutInput) (domain.PixCheckout, error) {
	req := domain.PixRequest{
		Description:    strings.TrimSpace(in.Description),
		PayerEmail:     strings.TrimSpace(in.PayerEmail),
		PayerCPF:       onlyDigits(in.PayerCPF),
		IdempotencyKey: uuid.NewString(),
	}
	if req.Description == "" {
		req.Description = defaultPixDescription
	}
	if req.PayerEmail == "" {
		req.PayerEmail = caller.Email
	}
	if in.Amount != nil {
		req.Amount = *in.Amount
	}

	var (
		hold *domain.TripPassenger
		trip domain.Trip
	)
	if in.TripID != nil {
		booking, t, err := s.bookings.Hold(ctx, *in.TripID, caller.UserID)
		if err != nil {
			return domain.PixCheckout{}, fmt.Errorf("service.PixService.CreateCheckout: %w", err)
		}
		hold, trip = &booking, t
		if in.Amount == nil {
			req.Amount = trip.PricePerPerson
		} else if math.Abs(*in.Amount-trip.PricePerPerson) > 0.005 {
			s.abandonHold(ctx, hold.ID)
			return domain.PixCheckout{}, fmt.Errorf("%w: amount must match the trip price %.2f", domain.ErrValidation, trip.PricePerPerson)
		}
	}
	if req.Amount <= 0 {
		if hold != nil {
			s.abandonHold(ctx, hold.ID)
		}
		return domain.PixCheckout{}, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	qr, err := s.gateway.CreatePix(ctx, req)
	if err == nil && (qr.QRCodeBase64 == "" || qr.QRCodeText == "") {
		err = fmt.Errorf("%w: response has no QR code", domain.ErrGateway)
	}
	s.deps.Recorder.GatewayCall("create_pix", gatewayOutcome(err))
	if err != nil {
		if hold != nil {
			s.abandonHold(ctx, hold.ID)
		}
		return domain.PixCheckout{}, fmt.Errorf("service.PixService.CreateCheckout: %w", err)
	}

	charge := domain.PixCharge{
		GatewayPaymentID: qr.PaymentID,
		PayerID:          caller.UserID,
		Amount:           req.Amount,
		Status:           qr.Status,
		ExpiresAt:        s.now().Add(s.holdTTL),
	}
	if charge.Status == "" {
		charge.Status = domain.GatewayPending
	}
	if hold != nil {
		charge.TripID = ptr(trip.ID)
		charge.TripPassengerID = ptr(hold.ID)
	}
	if _, err := s.charges.Create(ctx, charge); err != nil {
		if hold != nil {
			s.abandonHold(ctx, hold.ID)
		}
		return domain.PixCheckout{}, fmt.Errorf("service.PixService.CreateCheckout: %w", err)
	}

	s.deps.Logger.InfoContext(ctx, "pix charge created",
		"payment_id", qr.PaymentID, "amount", req.Amount, "payer_id", caller.UserID)

	out := domain.PixCheckout{
		PaymentID:    qr.PaymentID,
		QRCodeBase64: qr.QRCodeBase64,
		QRCodeText:   qr.QRCodeText,
		Amount:       req.Amount,
		ExpiresIn:    int(s.holdTTL / time.Minute),
	}
	if hold != nil {
		out.TripPassengerID = ptr(hold.ID)
	}
	return out, nil
}

// abandonHold releases a hold whose checkout did not go through.
func (s *PixService) abandonHold(ctx context.Context, id uuid.UUID) {
	if _, err := s.bookings.ReleaseHold(ctx, id); err != nil {
		s.deps.Logger.ErrorContext(ctx, "releasing abandoned hold failed", "trip_passenger_id", id, "error", err)
	}
}

// PaymentStatus returns the gateway's view of a payment and reconciles the
// linked hold. A reconciliation failure is logged; the status is still returned.
func (s *PixService) PaymentStatus(ctx context.Context, gatewayID string) (domain.GatewayPayment, error) {
	gp, err := s.lookup(ctx, gatewayID)
	if err != nil {
		return domain.GatewayPayment{}, fmt.Errorf("service.PixService.PaymentStatus: %w", err)
	}
	if err := s.Reconcile(ctx, gp); err != nil {
		s.deps.Logger.WarnContext(ctx, "reconciliation failed", "payment_id", gatewayID, "error", err)
	}
	return gp, nil
}

// HandleWebhook processes a gateway notification for dataID. The body of the
// notification is never trusted: the status is fetched from the gateway.
func (s *PixService) HandleWebhook(ctx context.Context, signature, requestID, dataID string) error {
	if dataID == "" {
		return fmt.Errorf("%w: notification has no data.id", domain.ErrValidation)
	}
	if s.verifier != nil {
		if err := s.verifier.Verify(signature, requestID, dataID); err != nil {
			return fmt.Errorf("service.PixService.HandleWebhook: %w", err)
		}
	}
	gp, err := s.fetch(ctx, dataID)
	if err != nil {
		return fmt.Errorf("service.PixService.HandleWebhook: %w", err)
	}
	if err := s.Reconcile(ctx, gp); err != nil {
		return fmt.Errorf("service.PixService.HandleWebhook: %w", err)
	}
	return nil
}

// TestConnection creates a minimal charge to prove the gateway credentials
// work. Admin only.
func (s *PixService) TestConnection(ctx context.Context, caller domain.Principal) (domain.PixQRCode, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.PixQRCode{}, fmt.Errorf("service.PixService.TestConnection: %w", err)
	}
	qr, err := s.gateway.CreatePix(ctx, domain.PixRequest{
		Amount:         0.01,
		Description:    "Teste de conectividade",
		PayerEmail:     caller.Email,
		IdempotencyKey: uuid.NewString(),
	})
	s.deps.Recorder.GatewayCall("create_pix", gatewayOutcome(err))
	if err != nil {
		return domain.PixQRCode{}, fmt.Errorf("service.PixService.TestConnection: %w", err)
	}
	return qr, nil
}

// lookup answers from the cache when possible.
func (s *PixService) lookup(ctx context.Context, id string) (domain.GatewayPayment, error) {
	if s.cache != nil {
		gp, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "status cache read failed", "payment_id", id, "error", err)
		}
		if ok {
			return gp, nil
		}
	}
	return s.fetch(ctx, id)
}

// fetch asks the gateway and refreshes the cache.
func (s *PixService) fetch(ctx context.Context, id string) (domain.GatewayPayment, error) {
	gp, err := s.gateway.GetPayment(ctx, id)
	s.deps.Recorder.GatewayCall("get_payment", gatewayOutcome(err))
	if err != nil {
		return domain.GatewayPayment{}, err
	}
	if s.cache != nil {
		ttl := pendingStatusTTL
		if gp.Status.IsFinal() {
			ttl = finalStatusTTL
		}
		if err := s.cache.Set(ctx, gp, ttl); err != nil {
			s.deps.Logger.WarnContext(ctx, "status cache write failed", "payment_id", id, "error", err)
		}
	}
	return gp, nil
}

// Reconcile applies a gateway status to the charge it belongs to:
//
//	approved           hold CONFIRMED, Payment PAID
//	rejected/expired   PENDING hold released, Payment FAILED
//	refunded           booking released, Payment REFUNDED
//
// Everything happens under the charge's row lock, so concurrent
// notifications for one payment apply one after the other. The payment
// record is keyed by the gateway id: at most one Payment exists per charge.
// Unknown payments are ignored.
func (s *PixService) Reconcile(ctx context.Context, gp domain.GatewayPayment) error {
	if _, err := s.reconcile(ctx, gp, false); err != nil {
		return fmt.Errorf("service.PixService.Reconcile: %w", err)
	}
	return nil
}

// reconcile reports whether the charge reached a final state. With
// expireIfPending, a charge that is still unsettled and past its expiry when
// read under the lock is settled as expired; one settled in the meantime is
// left alone.
func (s *PixService) reconcile(ctx context.Context, gp domain.GatewayPayment, expireIfPending bool) (bool, error) {
	var (
		charge  domain.PixCharge
		st      settlement
		changed bool
	)
	err := s.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		current, err := r.PixCharges.GetByGatewayIDForUpdate(ctx, gp.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		charge = current

		if expireIfPending {
			if current.ReconciledAt != nil || current.Status.IsFinal() || !s.now().After(current.ExpiresAt) {
				return nil
			}
			gp.Status = domain.GatewayExpired
		}
		if staleStatus(current, gp.Status) {
			return nil
		}

		outcome := gp.Status.Outcome()
		if outcome == domain.OutcomePending {
			if current.Status != gp.Status {
				_, err = r.PixCharges.UpdateStatus(ctx, current.ID, gp.Status, false)
			}
			return err
		}
		if current.TripPassengerID != nil {
			if st, err = s.bookings.settleIn(ctx, r, *current.TripPassengerID, outcome); err != nil {
				return err
			}
		}
		if current.TripID != nil {
			if err := s.recordPayment(ctx, r.Payments, current, gp); err != nil {
				return err
			}
		}
		changed = true
		_, err = r.PixCharges.UpdateStatus(ctx, current.ID, gp.Status, true)
		return err
	})
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	s.bookings.announce(ctx, st)
	s.deps.Logger.InfoContext(ctx, "payment reconciled", "payment_id", gp.ID, "status", gp.Status)
	if charge.TripID != nil {
		s.deps.publish(ctx, domain.Event{
			Type:            domain.EventPaymentReconciled,
			TripID:          *charge.TripID,
			TripPassengerID: charge.TripPassengerID,
			UserID:          ptr(charge.PayerID),
			Status:          string(gp.Status),
			OccurredAt:      s.now().UTC(),
		})
	}
	return true, nil
}

// staleStatus reports whether next can no longer follow the charge's settled
// status: repeats, pending after settlement, anything after a refund, and a
// failure after an approval. An approval after a failure still applies,
// since the money did move.
func staleStatus(c domain.PixCharge, next domain.GatewayStatus) bool {
	if c.ReconciledAt == nil {
		return false
	}
	if next == c.Status {
		return true
	}
	switch c.Status.Outcome() {
	case domain.OutcomeRefunded:
		return true
	case domain.OutcomeApproved:
		return next.Outcome() != domain.OutcomeRefunded
	}
	return next.Outcome() == domain.OutcomePending
}

// recordPayment upserts the Payment for a charge by transaction id. A PAID
// payment is never turned into a FAILED one.
func (s *PixService) recordPayment(ctx context.Context, payments repo.PaymentRepo, c domain.PixCharge, gp domain.GatewayPayment) error {
	var status domain.PaymentStatus
	switch gp.Status.Outcome() {
	case domain.OutcomeApproved:
		status = domain.PaymentPaid
	case domain.OutcomeFailed:
		status = domain.PaymentFailed
	case domain.OutcomeRefunded:
		status = domain.PaymentRefunded
	default:
		return nil
	}

	existing, err := payments.GetByTransactionID(ctx, gp.ID)
	if errors.Is(err, domain.ErrNotFound) {
		paidAt := s.now()
		if gp.DateApproved != nil {
			paidAt = *gp.DateApproved
		}
		_, err = payments.Create(ctx, domain.Payment{
			TripID:        *c.TripID,
			PayerID:       c.PayerID,
			Value:         c.Amount,
			Status:        status,
			PaymentDate:   paidAt,
			TransactionID: gp.ID,
		})
		return err
	}
	if err != nil {
		return err
	}
	if existing.Status == status {
		return nil
	}
	if existing.Status == domain.PaymentPaid && status == domain.PaymentFailed {
		s.deps.Logger.WarnContext(ctx, "ignoring failure for a paid payment", "payment_id", gp.ID, "status", gp.Status)
		return nil
	}
	existing.Status = status
	_, err = payments.Update(ctx, existing)
	return err
}

// ReconcilePending re-checks the unreconciled charges that are due. Holds
// still pending past their expiry are released as expired. Charges that stay
// open are pushed back: pending ones by pendingRecheck, and ones whose lookup
// failed by a backoff that grows with each failure, so a charge the gateway
// keeps failing on cannot starve the rest of the batch. It returns how many
// charges reached a final state.
func (s *PixService) ReconcilePending(ctx context.Context) (int, error) {
	charges, err := s.charges.ListDue(ctx, s.now(), reconcileBatchSize)
	if err != nil {
		return 0, fmt.Errorf("service.PixService.ReconcilePending: %w", err)
	}

	settled := 0
	for _, c := range charges {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		gp, err := s.fetch(ctx, c.GatewayPaymentID)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "status check failed",
				"payment_id", c.GatewayPaymentID, "failures", c.CheckFailures+1, "error", err)
			s.scheduleCheck(ctx, c, true)
			continue
		}
		final, err := s.reconcile(ctx, gp, !gp.Status.IsFinal())
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "reconciliation failed", "payment_id", c.GatewayPaymentID, "error", err)
			s.scheduleCheck(ctx, c, true)
			continue
		}
		if final {
			settled++
			continue
		}
		s.scheduleCheck(ctx, c, false)
	}
	return settled, nil
}

func (s *PixService) scheduleCheck(ctx context.Context, c domain.PixCharge, failed bool) {
	now := s.now()
	next := now.Add(pendingRecheck)
	if failed {
		next = now.Add(lookupBackoff(c.CheckFailures))
	} else if c.ExpiresAt.After(now) && c.ExpiresAt.Before(next) {
		next = c.ExpiresAt
	}
	if err := s.charges.ScheduleCheck(ctx, c.ID, next, failed); err != nil {
		s.deps.Logger.WarnContext(ctx, "scheduling status check failed", "payment_id", c.GatewayPaymentID, "error", err)
	}
}

// lookupBackoff doubles from one minute per consecutive failure, up to an hour.
func lookupBackoff(failures int) time.Duration {
	d := time.Minute << min(failures, 6)
	return min(d, time.Hour)
}

// RunReconciler calls ReconcilePending every interval until ctx is done.
func (s *PixService) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReconcilePending(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.deps.Logger.ErrorContext(ctx, "reconciler pass failed", "error", err)
			} else if n > 0 {
				s.deps.Logger.InfoContext(ctx, "reconciler pass", "settled", n)
			}
		}
	}
}

func gatewayOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
