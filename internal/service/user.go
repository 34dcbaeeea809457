package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/carpool/backend/internal/auth"
	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
)

const minPasswordLen = 6

// TokenIssuer signs a bearer token for an authenticated user.
type TokenIssuer interface {
	Issue(u domain.User) (string, error)
}

// UserService implements registration, login and user administration.
type UserService struct {
	users  repo.UserRepo
	tokens TokenIssuer
}

// NewUserService constructs a UserService.
func NewUserService(users repo.UserRepo, tokens TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// NewUser is the input for Register and Create. Password is plain text.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     domain.Role
}

// UserPatch is a partial update. Nil fields are left unchanged.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Phone    *string
	Role     *domain.Role
	Active   *bool
}

// Register creates a self-service account and signs a token for it. Only
// STANDARD and DRIVER may be chosen; the default is STANDARD.
func (s *UserService) Register(ctx context.Context, in NewUser) (domain.User, string, error) {
	if in.Role == "" {
		in.Role = domain.RoleStandard
	}
	if in.Role == domain.RoleAdmin {
		return domain.User{}, "", fmt.Errorf("%w: cannot self-register as ADMIN", domain.ErrForbidden)
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("service.UserService.Register: %w", err)
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("service.UserService.Register: %w", err)
	}
	return u, token, nil
}

// Login checks credentials. Unknown email and wrong password both fail with
// the same domain.ErrUnauthorized; a deactivated account is domain.ErrForbidden.
func (s *UserService) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, "", fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.User{}, "", fmt.Errorf("service.UserService.Login: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return domain.User{}, "", fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}
	if !u.Active {
		return domain.User{}, "", fmt.Errorf("%w: account is inactive", domain.ErrForbidden)
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("service.UserService.Login: %w", err)
	}
	return u, token, nil
}

// Create adds a user of any role. Admin only.
func (s *UserService) Create(ctx context.Context, caller domain.Principal, in NewUser) (domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Create: %w", err)
	}
	if in.Role == "" {
		in.Role = domain.RoleStandard
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Create: %w", err)
	}
	return u, nil
}

func (s *UserService) create(ctx context.Context, in NewUser) (domain.User, error) {
	u := domain.User{
		Name:   strings.TrimSpace(in.Name),
		Email:  strings.TrimSpace(in.Email),
		Phone:  strings.TrimSpace(in.Phone),
		Role:   in.Role,
		Active: true,
	}
	if err := validateUser(u); err != nil {
		return domain.User{}, err
	}
	if len(in.Password) < minPasswordLen {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u.PasswordHash = hash
	return s.users.Create(ctx, u)
}

// EnsureAdmin makes sure an active ADMIN account exists for in.Email. A new
// account is created when none exists. An existing one is promoted and
// reactivated, and its password is replaced only when in.Password no longer
// matches. The bool reports whether the account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, in NewUser) (domain.User, bool, error) {
	in.Role = domain.RoleAdmin
	existing, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if errors.Is(err, domain.ErrNotFound) {
		u, err := s.create(ctx, in)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("service.UserService.EnsureAdmin: %w", err)
		}
		return u, true, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("service.UserService.EnsureAdmin: %w", err)
	}

	rehash := !auth.CheckPassword(existing.PasswordHash, in.Password)
	if existing.Role == domain.RoleAdmin && existing.Active && !rehash {
		return existing, false, nil
	}
	existing.Role = domain.RoleAdmin
	existing.Active = true
	existing.PasswordHash = ""
	if rehash {
		if len(in.Password) < minPasswordLen {
			return domain.User{}, false, fmt.Errorf("service.UserService.EnsureAdmin: %w: password must be at least %d characters",
				domain.ErrValidation, minPasswordLen)
		}
		if existing.PasswordHash, err = auth.HashPassword(in.Password); err != nil {
			return domain.User{}, false, fmt.Errorf("service.UserService.EnsureAdmin: %w", err)
		}
	}
	u, err := s.users.Update(ctx, existing)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("service.UserService.EnsureAdmin: %w", err)
	}
	return u, false, nil
}

// GetByID returns a user.
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.GetByID: %w", err)
	}
	return u, nil
}

// List returns a page of users. Always returns a non-nil slice.
func (s *UserService) List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error) {
	users, total, err := s.users.List(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.UserService.List: %w", err)
	}
	return nonNil(users), total, nil
}

// Update applies patch to a user. Users may edit themselves; changing role
// or active flag needs ADMIN.
func (s *UserService) Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch UserPatch) (domain.User, error) {
	if err := requireOwner(caller, id); err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Update: %w", err)
	}
	if (patch.Role != nil || patch.Active != nil) && !caller.IsAdmin() {
		return domain.User{}, fmt.Errorf("service.UserService.Update: %w: only admins can change role or active", domain.ErrForbidden)
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Update: %w", err)
	}
	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		u.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if err := validateUser(u); err != nil {
		return domain.User{}, err
	}

	u.PasswordHash = ""
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLen {
			return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
		}
		if u.PasswordHash, err = auth.HashPassword(*patch.Password); err != nil {
			return domain.User{}, fmt.Errorf("service.UserService.Update: %w", err)
		}
	}

	result, err := s.users.Update(ctx, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("service.UserService.Update: %w", err)
	}
	return result, nil
}

// Delete removes a user. Admin only.
func (s *UserService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	if err := requireAdmin(caller); err != nil {
		return fmt.Errorf("service.UserService.Delete: %w", err)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.UserService.Delete: %w", err)
	}
	return nil
}

func validateUser(u domain.User) error {
	if u.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email is invalid", domain.ErrValidation)
	}
	if !u.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, u.Role)
	}
	return nil
}
