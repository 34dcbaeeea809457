package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/handler"
	"github.com/pkordes/carpool/backend/internal/service"
)

type mockUserServicer struct {
	register func(ctx context.Context, in service.NewUser) (domain.User, string, error)
	login    func(ctx context.Context, email, password string) (domain.User, string, error)
	create   func(ctx context.Context, caller domain.Principal, in service.NewUser) (domain.User, error)
	getByID  func(ctx context.Context, id uuid.UUID) (domain.User, error)
	list     func(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error)
	update   func(ctx context.Context, caller domain.Principal, id uuid.UUID, patch service.UserPatch) (domain.User, error)
	delete   func(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

var _ handler.UserServicer = (*mockUserServicer)(nil)

func (m *mockUserServicer) Register(ctx context.Context, in service.NewUser) (domain.User, string, error) {
	return m.register(ctx, in)
}
func (m *mockUserServicer) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	return m.login(ctx, email, password)
}
func (m *mockUserServicer) Create(ctx context.Context, c domain.Principal, in service.NewUser) (domain.User, error) {
	return m.create(ctx, c, in)
}
func (m *mockUserServicer) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	return m.getByID(ctx, id)
}
func (m *mockUserServicer) List(ctx context.Context, p domain.PaginationParams) ([]domain.User, int64, error) {
	return m.list(ctx, p)
}
func (m *mockUserServicer) Update(ctx context.Context, c domain.Principal, id uuid.UUID, patch service.UserPatch) (domain.User, error) {
	return m.update(ctx, c, id, patch)
}
func (m *mockUserServicer) Delete(ctx context.Context, c domain.Principal, id uuid.UUID) error {
	return m.delete(ctx, c, id)
}

// ---- POST /auth/register ---------------------------------------------------

func TestRegister_201(t *testing.T) {
	var got service.NewUser
	svc := &mockUserServicer{
		register: func(_ context.Context, in service.NewUser) (domain.User, string, error) {
			got = in
			return domain.User{ID: uuid.New(), Name: in.Name, Email: in.Email, Role: domain.RoleStandard, Active: true, PasswordHash: "secret-hash"}, "jwt", nil
		},
	}
	rec := do(t, newRouter(handler.Services{Users: svc}), http.MethodPost, "/auth/register", "", jsonBody(t, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "hunter22",
	}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "hunter22", got.Password)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	var body struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	decodeInto(t, rec, &body)
	assert.Equal(t, "jwt", body.Token)
	assert.Equal(t, "ana@example.com", body.User.Email)
}

func TestRegister_400_ShortPassword(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Users: &mockUserServicer{}}), http.MethodPost, "/auth/register", "", jsonBody(t, map[string]any{
		"name": "Ana", "email": "not-an-email", "password": "123",
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decodeError(t, rec).Details
	assert.Equal(t, "must be at least 6", details["password"])
	assert.Equal(t, "must be a valid email address", details["email"])
}

func TestRegister_400_AdminRoleRejected(t *testing.T) {
	rec := do(t, newRouter(handler.Services{Users: &mockUserServicer{}}), http.MethodPost, "/auth/register", "", jsonBody(t, map[string]any{
		"name": "Eve", "email": "eve@example.com", "password": "hunter22", "role": "ADMIN",
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "role")
}

func TestRegister_409_DuplicateEmail(t *testing.T) {
	svc := &mockUserServicer{
		register: func(context.Context, service.NewUser) (domain.User, string, error) {
			return domain.User{}, "", fmt.Errorf("service.UserService.Register: repo.UserRepo.Create: %w: email already registered", domain.ErrConflict)
		},
	}
	rec := do(t, newRouter(handler.Services{Users: svc}), http.MethodPost, "/auth/register", "", jsonBody(t, map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "hunter22",
	}))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already registered", decodeError(t, rec).Message)
}

// ---- POST /auth/login ------------------------------------------------------

func TestLogin(t *testing.T) {
	svc := &mockUserServicer{
		login: func(_ context.Context, email, password string) (domain.User, string, error) {
			switch {
			case email == "off@example.com":
				return domain.User{}, "", fmt.Errorf("%w: account is inactive", domain.ErrForbidden)
			case password != "hunter22":
				return domain.User{}, "", fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
			}
			return domain.User{ID: uuid.New(), Email: email}, "jwt", nil
		},
	}
	h := newRouter(handler.Services{Users: svc})

	rec := do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{"email": "ana@example.com", "password": "hunter22"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{"email": "ana@example.com", "password": "nope"}))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{"email": "off@example.com", "password": "hunter22"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	svc := &mockUserServicer{
		login: func(context.Context, string, string) (domain.User, string, error) {
			return domain.User{}, "", domain.ErrUnauthorized
		},
	}
	h := newRouter(handler.Services{Users: svc}, func(o *handler.Options) { o.LoginRatePerMin = 2 })

	for range 2 {
		rec := do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{"email": "a@example.com", "password": "x"}))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{"email": "a@example.com", "password": "x"}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// ---- GET /auth/me ----------------------------------------------------------

func TestMe(t *testing.T) {
	svc := &mockUserServicer{
		getByID: func(_ context.Context, id uuid.UUID) (domain.User, error) {
			return domain.User{ID: id, Role: domain.RoleDriver}, nil
		},
	}
	rec := do(t, newRouter(handler.Services{Users: svc}), http.MethodGet, "/auth/me", "driver", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var u domain.User
	decodeInto(t, rec, &u)
	assert.Equal(t, driverCaller.UserID, u.ID)
}

// ---- /users ----------------------------------------------------------------

func TestDeleteUser_AdminOnly(t *testing.T) {
	svc := &mockUserServicer{
		delete: func(context.Context, domain.Principal, uuid.UUID) error { return nil },
	}
	h := newRouter(handler.Services{Users: svc})

	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/users/"+uuid.NewString(), "driver", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/users/"+uuid.NewString(), "admin", nil).Code)
}

func TestUpdateUser_PassesPartialPatch(t *testing.T) {
	var got service.UserPatch
	svc := &mockUserServicer{
		update: func(_ context.Context, _ domain.Principal, id uuid.UUID, patch service.UserPatch) (domain.User, error) {
			got = patch
			return domain.User{ID: id}, nil
		},
	}
	rec := do(t, newRouter(handler.Services{Users: svc}), http.MethodPut, "/users/"+riderCaller.UserID.String(), "rider",
		jsonBody(t, map[string]any{"phone": "+55 11 91234-5678", "role": "DRIVER"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.Name)
	assert.Nil(t, got.Password)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "+55 11 91234-5678", *got.Phone)
	require.NotNil(t, got.Role)
	assert.Equal(t, domain.RoleDriver, *got.Role)
}
