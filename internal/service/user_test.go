package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/auth"
	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/repo"
	"github.com/pkordes/carpool/backend/internal/service"
)

// mockUserRepo is a hand-written test double for repo.UserRepo.
type mockUserRepo struct {
	create     func(ctx context.Context, u domain.User) (domain.User, error)
	getByID    func(ctx context.Context, id uuid.UUID) (domain.User, error)
	getByEmail func(ctx context.Context, email string) (domain.User, error)
	list       func(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error)
	update     func(ctx context.Context, u domain.User) (domain.User, error)
	delete     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	return m.create(ctx, u)
}
func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return m.getByEmail(ctx, email)
}
func (m *mockUserRepo) List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error) {
	return m.list(ctx, p)
}
func (m *mockUserRepo) Update(ctx context.Context, u domain.User) (domain.User, error) {
	return m.update(ctx, u)
}
func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.UserRepo = (*mockUserRepo)(nil)

type fakeIssuer struct{}

func (fakeIssuer) Issue(u domain.User) (string, error) { return "token-" + u.Email, nil }

// echoCreate returns the user it was given with an id assigned.
func echoCreate(_ context.Context, u domain.User) (domain.User, error) {
	u.ID = uuid.New()
	return u, nil
}

// ---- Register --------------------------------------------------------------

func TestUserService_Register(t *testing.T) {
	var stored domain.User
	users := &mockUserRepo{create: func(ctx context.Context, u domain.User) (domain.User, error) {
		stored = u
		return echoCreate(ctx, u)
	}}
	svc := service.NewUserService(users, fakeIssuer{})

	got, token, err := svc.Register(context.Background(), service.NewUser{
		Name: "  Ana  ", Email: "ana@example.com", Password: "segredo",
	})

	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, domain.RoleStandard, got.Role, "role defaults to STANDARD")
	assert.True(t, got.Active)
	assert.Equal(t, "token-ana@example.com", token)
	assert.NotEqual(t, "segredo", stored.PasswordHash)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "segredo"))
}

func TestUserService_Register_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      service.NewUser
		wantErr error
	}{
		{"admin role", service.NewUser{Name: "A", Email: "a@example.com", Password: "123456", Role: domain.RoleAdmin}, domain.ErrForbidden},
		{"missing name", service.NewUser{Email: "a@example.com", Password: "123456"}, domain.ErrValidation},
		{"bad email", service.NewUser{Name: "A", Email: "not-an-email", Password: "123456"}, domain.ErrValidation},
		{"short password", service.NewUser{Name: "A", Email: "a@example.com", Password: "12345"}, domain.ErrValidation},
		{"unknown role", service.NewUser{Name: "A", Email: "a@example.com", Password: "123456", Role: "PILOT"}, domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := service.NewUserService(&mockUserRepo{create: echoCreate}, fakeIssuer{})

			_, _, err := svc.Register(context.Background(), tc.in)

			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	users := &mockUserRepo{create: func(context.Context, domain.User) (domain.User, error) {
		return domain.User{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}}
	svc := service.NewUserService(users, fakeIssuer{})

	_, _, err := svc.Register(context.Background(), service.NewUser{Name: "A", Email: "a@example.com", Password: "123456"})

	assert.ErrorIs(t, err, domain.ErrConflict)
}

// ---- EnsureAdmin -----------------------------------------------------------

func TestUserService_EnsureAdmin_CreatesAccount(t *testing.T) {
	var stored domain.User
	users := &mockUserRepo{
		getByEmail: func(context.Context, string) (domain.User, error) {
			return domain.User{}, domain.ErrNotFound
		},
		create: func(ctx context.Context, u domain.User) (domain.User, error) {
			stored = u
			return echoCreate(ctx, u)
		},
	}
	svc := service.NewUserService(users, fakeIssuer{})

	got, created, err := svc.EnsureAdmin(context.Background(), service.NewUser{
		Name: "Ops", Email: " ops@example.com ", Password: "segredo",
	})

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "ops@example.com", stored.Email)
	assert.True(t, stored.Active)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "segredo"))
}

func TestUserService_EnsureAdmin_PromotesExisting(t *testing.T) {
	hash, err := auth.HashPassword("segredo")
	require.NoError(t, err)
	existing := domain.User{ID: uuid.New(), Name: "Bia", Email: "bia@example.com", PasswordHash: hash, Role: domain.RoleDriver}
	var updated domain.User
	users := &mockUserRepo{
		getByEmail: func(context.Context, string) (domain.User, error) { return existing, nil },
		update: func(_ context.Context, u domain.User) (domain.User, error) {
			updated = u
			return u, nil
		},
	}
	svc := service.NewUserService(users, fakeIssuer{})

	got, created, err := svc.EnsureAdmin(context.Background(), service.NewUser{Email: "bia@example.com", Password: "segredo"})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, got.ID)
	assert.Equal(t, domain.RoleAdmin, updated.Role)
	assert.True(t, updated.Active)
	assert.Empty(t, updated.PasswordHash, "a matching password is left alone")
}

func TestUserService_EnsureAdmin_AlreadyAdmin(t *testing.T) {
	hash, err := auth.HashPassword("segredo")
	require.NoError(t, err)
	existing := domain.User{ID: uuid.New(), Email: "root@example.com", PasswordHash: hash, Role: domain.RoleAdmin, Active: true}
	users := &mockUserRepo{
		getByEmail: func(context.Context, string) (domain.User, error) { return existing, nil },
		update: func(context.Context, domain.User) (domain.User, error) {
			t.Fatal("nothing to update")
			return domain.User{}, nil
		},
	}
	svc := service.NewUserService(users, fakeIssuer{})

	got, created, err := svc.EnsureAdmin(context.Background(), service.NewUser{Email: "root@example.com", Password: "segredo"})

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, got)
}

func TestUserService_EnsureAdmin_ShortPassword(t *testing.T) {
	users := &mockUserRepo{
		getByEmail: func(context.Context, string) (domain.User, error) {
			return domain.User{ID: uuid.New(), Email: "x@example.com", PasswordHash: "x", Role: domain.RoleStandard}, nil
		},
	}
	svc := service.NewUserService(users, fakeIssuer{})

	_, _, err := svc.EnsureAdmin(context.Background(), service.NewUser{Email: "x@example.com", Password: "123"})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- Login -----------------------------------------------------------------

func TestUserService_Login(t *testing.T) {
	hash, err := auth.HashPassword("segredo")
	require.NoError(t, err)
	account := domain.User{ID: uuid.New(), Name: "Bia", Email: "bia@example.com", PasswordHash: hash, Role: domain.RoleDriver, Active: true}

	tests := []struct {
		name     string
		email    string
		password string
		active   bool
		wantErr  error
	}{
		{"ok", " bia@example.com ", "segredo", true, nil},
		{"wrong password", "bia@example.com", "errado", true, domain.ErrUnauthorized},
		{"unknown email", "ghost@example.com", "segredo", true, domain.ErrUnauthorized},
		{"inactive", "bia@example.com", "segredo", false, domain.ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &mockUserRepo{getByEmail: func(_ context.Context, email string) (domain.User, error) {
				if email != account.Email {
					return domain.User{}, domain.ErrNotFound
				}
				u := account
				u.Active = tc.active
				return u, nil
			}}
			svc := service.NewUserService(users, fakeIssuer{})

			got, token, err := svc.Login(context.Background(), tc.email, tc.password)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, account.ID, got.ID)
			assert.Equal(t, "token-bia@example.com", token)
		})
	}
}

func TestUserService_Login_SameMessageForUnknownAndWrong(t *testing.T) {
	hash, err := auth.HashPassword("segredo")
	require.NoError(t, err)
	users := &mockUserRepo{getByEmail: func(_ context.Context, email string) (domain.User, error) {
		if email == "bia@example.com" {
			return domain.User{Email: email, PasswordHash: hash, Active: true}, nil
		}
		return domain.User{}, domain.ErrNotFound
	}}
	svc := service.NewUserService(users, fakeIssuer{})

	_, _, unknown := svc.Login(context.Background(), "ghost@example.com", "x")
	_, _, wrong := svc.Login(context.Background(), "bia@example.com", "x")

	assert.Equal(t, unknown.Error(), wrong.Error())
}

// ---- Update / Delete -------------------------------------------------------

func TestUserService_Update(t *testing.T) {
	id := uuid.New()
	existing := domain.User{ID: id, Name: "Caio", Email: "caio@example.com", PasswordHash: "stored", Role: domain.RoleStandard, Active: true}
	var saved domain.User
	users := &mockUserRepo{
		getByID: func(context.Context, uuid.UUID) (domain.User, error) { return existing, nil },
		update: func(_ context.Context, u domain.User) (domain.User, error) {
			saved = u
			return u, nil
		},
	}
	svc := service.NewUserService(users, fakeIssuer{})
	self := principal(id, domain.RoleStandard)
	ctx := context.Background()

	got, err := svc.Update(ctx, self, id, service.UserPatch{Name: ptrTo("Caio Souza")})
	require.NoError(t, err)
	assert.Equal(t, "Caio Souza", got.Name)
	assert.Empty(t, saved.PasswordHash, "no password patch leaves the hash alone")

	_, err = svc.Update(ctx, self, id, service.UserPatch{Role: ptrTo(domain.RoleAdmin)})
	assert.ErrorIs(t, err, domain.ErrForbidden, "users cannot promote themselves")

	_, err = svc.Update(ctx, principal(uuid.New(), domain.RoleStandard), id, service.UserPatch{Name: ptrTo("x")})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Update(ctx, principal(uuid.New(), domain.RoleAdmin), id, service.UserPatch{Active: ptrTo(false)})
	require.NoError(t, err)
	assert.False(t, saved.Active)

	_, err = svc.Update(ctx, self, id, service.UserPatch{Password: ptrTo("novasenha")})
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(saved.PasswordHash, "novasenha"))
}

func TestUserService_Delete_AdminOnly(t *testing.T) {
	errDelete := errors.New("boom")
	users := &mockUserRepo{delete: func(context.Context, uuid.UUID) error { return errDelete }}
	svc := service.NewUserService(users, fakeIssuer{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Delete(ctx, rider(), uuid.New()), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, principal(uuid.New(), domain.RoleAdmin), uuid.New()), errDelete)
}
