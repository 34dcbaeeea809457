package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

var expirationPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

// NewCreditCard is the input for CreditCardService.Create. Number is the full
// PAN; only its last four digits are stored.
type NewCreditCard struct {
	UserID         uuid.UUID
	Number         string
	Brand          string
	Token          string
	ExpirationDate string
	Nickname       string
}

// CreditCardService implements business logic for stored cards. Cards are
// private: only the owner or an admin can read or change them.
type CreditCardService struct {
	repo repo.CreditCardRepo
}

// NewCreditCardService constructs a CreditCardService.
func NewCreditCardService(r repo.CreditCardRepo) *CreditCardService {
	return &CreditCardService{repo: r}
}

func (s *CreditCardService) Create(ctx context.Context, caller domain.Principal, in NewCreditCard) (domain.CreditCard, error) {
	if err := ownedBy(caller, &in.UserID); err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.Create: %w", err)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		if r == ' ' || r == '-' {
			return -1
		}
		return 'x'
	}, in.Number)
	if len(digits) < 12 || len(digits) > 19 || strings.ContainsRune(digits, 'x') {
		return domain.CreditCard{}, fmt.Errorf("%w: number must have 12 to 19 digits", domain.ErrValidation)
	}
	card := domain.CreditCard{
		UserID:         in.UserID,
		MaskedNumber:   "**** **** **** " + digits[len(digits)-4:],
		Brand:          strings.TrimSpace(in.Brand),
		Token:          in.Token,
		ExpirationDate: strings.TrimSpace(in.ExpirationDate),
		Nickname:       strings.TrimSpace(in.Nickname),
	}
	if err := validateCard(card); err != nil {
		return domain.CreditCard{}, err
	}
	result, err := s.repo.Create(ctx, card)
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.Create: %w", err)
	}
	return result, nil
}

func (s *CreditCardService) GetByID(ctx context.Context, caller domain.Principal, id uuid.UUID) (domain.CreditCard, error) {
	card, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.GetByID: %w", err)
	}
	if err := requireOwner(caller, card.UserID); err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.GetByID: %w", err)
	}
	return card, nil
}

// List returns cards. Non-admins only ever see their own.
func (s *CreditCardService) List(ctx context.Context, caller domain.Principal, f domain.CreditCardFilter, p domain.PaginationParams) ([]domain.CreditCard, int64, error) {
	if !caller.IsAdmin() {
		if f.UserID != nil && *f.UserID != caller.UserID {
			return nil, 0, fmt.Errorf("service.CreditCardService.List: %w: insufficient permission", domain.ErrForbidden)
		}
		f.UserID = ptr(caller.UserID)
	}
	out, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.CreditCardService.List: %w", err)
	}
	return nonNil(out), total, nil
}

// Update edits brand, expiration date and nickname.
func (s *CreditCardService) Update(ctx context.Context, caller domain.Principal, card domain.CreditCard) (domain.CreditCard, error) {
	current, err := s.GetByID(ctx, caller, card.ID)
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.Update: %w", err)
	}
	current.Brand = strings.TrimSpace(card.Brand)
	current.ExpirationDate = strings.TrimSpace(card.ExpirationDate)
	current.Nickname = strings.TrimSpace(card.Nickname)
	if err := validateCard(current); err != nil {
		return domain.CreditCard{}, err
	}
	result, err := s.repo.Update(ctx, current)
	if err != nil {
		return domain.CreditCard{}, fmt.Errorf("service.CreditCardService.Update: %w", err)
	}
	return result, nil
}

func (s *CreditCardService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, caller, id); err != nil {
		return fmt.Errorf("service.CreditCardService.Delete: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.CreditCardService.Delete: %w", err)
	}
	return nil
}

func validateCard(c domain.CreditCard) error {
	if c.Brand == "" {
		return fmt.Errorf("%w: brand is required", domain.ErrValidation)
	}
	if !expirationPattern.MatchString(c.ExpirationDate) {
		return fmt.Errorf("%w: expiration_date must be MM/YY", domain.ErrValidation)
	}
	return nil
}
