package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/carpool/backend/internal/handler"
)

func TestGetHealth_200(t *testing.T) {
	rec := do(t, newRouter(handler.Services{}), http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decodeInto(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestGetReady(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errBoom })

	t.Run("all checks pass", func(t *testing.T) {
		h := newRouter(handler.Services{}, func(o *handler.Options) {
			o.Checks = map[string]handler.Pinger{"postgres": healthy, "redis": healthy}
		})
		rec := do(t, h, http.MethodGet, "/readyz", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		decodeInto(t, rec, &body)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Checks)
	})

	t.Run("one check fails", func(t *testing.T) {
		h := newRouter(handler.Services{}, func(o *handler.Options) {
			o.Checks = map[string]handler.Pinger{"postgres": healthy, "redis": down}
		})
		rec := do(t, h, http.MethodGet, "/readyz", "", nil)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	})
}

func TestRouter_UnknownRoute_404JSON(t *testing.T) {
	rec := do(t, newRouter(handler.Services{}), http.MethodGet, "/nope", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decodeError(t, rec).Message)
}

func TestRouter_WrongMethod_405JSON(t *testing.T) {
	rec := do(t, newRouter(handler.Services{}), http.MethodDelete, "/healthz", "", nil)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeError(t, rec).Message)
}

func TestRouter_ProtectedRouteWithoutToken_401(t *testing.T) {
	rec := do(t, newRouter(handler.Services{}), http.MethodGet, "/trips", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	decodeError(t, rec)
}

func TestGetOpenAPI(t *testing.T) {
	rec := do(t, newRouter(handler.Services{}), http.MethodGet, "/openapi.yaml", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.0")
}
