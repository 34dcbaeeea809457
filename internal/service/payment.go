package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

// ReceiptRenderer turns a payment into a printable document.
type ReceiptRenderer interface {
	Render(p domain.Payment, trip domain.Trip, payer domain.User) ([]byte, error)
}

// PaymentService implements business logic for recorded payments. Records
// made by PIX reconciliation go through PixService; this is the manual path.
type PaymentService struct {
	payments repo.PaymentRepo
	cards    repo.CreditCardRepo
	trips    repo.TripRepo
	users    repo.UserRepo
	receipts ReceiptRenderer
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(payments repo.PaymentRepo, cards repo.CreditCardRepo, trips repo.TripRepo, users repo.UserRepo, receipts ReceiptRenderer) *PaymentService {
	return &PaymentService{payments: payments, cards: cards, trips: trips, users: users, receipts: receipts}
}

// Create records a payment. payer_id defaults to the caller and a card, when
// given, must belong to the payer.
func (s *PaymentService) Create(ctx context.Context, caller domain.Principal, p domain.Payment) (domain.Payment, error) {
	if err := ownedBy(caller, &p.PayerID); err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Create: %w", err)
	}
	if p.TripID == uuid.Nil {
		return domain.Payment{}, fmt.Errorf("%w: trip_id is required", domain.ErrValidation)
	}
	if p.Status == "" {
		p.Status = domain.PaymentPaid
	}
	if err := s.validate(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Create: %w", err)
	}

	result, err := s.payments.Create(ctx, p)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a payment visible to the payer, the trip's driver or an admin.
func (s *PaymentService) GetByID(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.GetByID: %w", err)
	}
	if !caller.CanActFor(p.PayerID) {
		trip, err := s.trips.GetByID(ctx, p.TripID)
		if err != nil {
			return domain.Payment{}, fmt.Errorf("service.PaymentService.GetByID: %w", err)
		}
		if trip.DriverID != caller.UserID {
			return domain.Payment{}, fmt.Errorf("service.PaymentService.GetByID: %w: insufficient permission", domain.ErrForbidden)
		}
	}
	return p, nil
}

func (s *PaymentService) List(ctx context.Context, f domain.PaymentFilter, pg domain.PaginationParams) ([]domain.Payment, int64, error) {
	if f.Status != nil && !f.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, *f.Status)
	}
	out, total, err := s.payments.List(ctx, f, pg)
	if err != nil {
		return nil, 0, fmt.Errorf("service.PaymentService.List: %w", err)
	}
	return nonNil(out), total, nil
}

// Update changes value, status, card or transaction id. Admin only, since
// payment outcomes normally come from the gateway.
func (s *PaymentService) Update(ctx context.Context, caller domain.Principal, p domain.Payment) (domain.Payment, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Update: %w", err)
	}
	current, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Update: %w", err)
	}
	p.TripID = current.TripID
	p.PayerID = current.PayerID
	if err := s.validate(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Update: %w", err)
	}

	result, err := s.payments.Update(ctx, p)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("service.PaymentService.Update: %w", err)
	}
	return result, nil
}

func (s *PaymentService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	if err := requireAdmin(caller); err != nil {
		return fmt.Errorf("service.PaymentService.Delete: %w", err)
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.PaymentService.Delete: %w", err)
	}
	return nil
}

// Receipt renders a PDF receipt for a payment the caller may see.
func (s *PaymentService) Receipt(ctx context.Context, caller domain.Principal, id uuid.UUID) ([]byte, error) {
	p, err := s.GetByID(ctx, caller, id)
	if err != nil {
		return nil, fmt.Errorf("service.PaymentService.Receipt: %w", err)
	}
	trip, err := s.trips.GetByID(ctx, p.TripID)
	if err != nil {
		return nil, fmt.Errorf("service.PaymentService.Receipt: %w", err)
	}
	payer, err := s.users.GetByID(ctx, p.PayerID)
	if err != nil {
		return nil, fmt.Errorf("service.PaymentService.Receipt: %w", err)
	}
	doc, err := s.receipts.Render(p, trip, payer)
	if err != nil {
		return nil, fmt.Errorf("service.PaymentService.Receipt: %w", err)
	}
	return doc, nil
}

func (s *PaymentService) validate(ctx context.Context, p domain.Payment) error {
	if p.Value <= 0 {
		return fmt.Errorf("%w: value must be positive", domain.ErrValidation)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, p.Status)
	}
	if strings.TrimSpace(p.TransactionID) != p.TransactionID {
		return fmt.Errorf("%w: transaction_id must not have surrounding spaces", domain.ErrValidation)
	}
	if p.CreditCardID == nil {
		return nil
	}
	card, err := s.cards.GetByID(ctx, *p.CreditCardID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: credit card does not exist", domain.ErrValidation)
	}
	if err != nil {
		return err
	}
	if card.UserID != p.PayerID {
		return fmt.Errorf("%w: credit card does not belong to the payer", domain.ErrValidation)
	}
	return nil
}
