package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/domain"
	"github.com/pkordes/carpool/backend/internal/handler"
)

// Callers recognised by the fake token verifier, keyed by bearer token.
var (
	adminCaller  = domain.Principal{UserID: uuid.New(), Email: "admin@example.com", Role: domain.RoleAdmin}
	driverCaller = domain.Principal{UserID: uuid.New(), Email: "driver@example.com", Role: domain.RoleDriver}
	riderCaller  = domain.Principal{UserID: uuid.New(), Email: "rider@example.com", Role: domain.RoleStandard}
)

type fakeTokens map[string]domain.Principal

func (f fakeTokens) Verify(token string) (domain.Principal, error) {
	p, ok := f[token]
	if !ok {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	return p, nil
}

var testTokens = fakeTokens{"admin": adminCaller, "driver": driverCaller, "rider": riderCaller}

// newRouter wires the real router around svc, the way main.go does.
func newRouter(svc handler.Services, opts ...func(*handler.Options)) http.Handler {
	o := handler.Options{
		Tokens:      testTokens,
		CORSOrigins: []string{"http://localhost:3000"},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return handler.NewServer(svc, o).Router()
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// do sends a request as the caller identified by token ("" for anonymous).
func do(t *testing.T, h http.Handler, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.Equal(t, "error", body.Status)
	return body
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var errBoom = errors.New("boom")

func newRequest(method, path string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, path, body)
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
