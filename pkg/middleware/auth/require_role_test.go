package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/order_service/pkg/tokens"
)

func newAdminServer(secret []byte) *echo.Echo {
	e := echo.New()
	g := NewRoleGuard(secret)
	e.PATCH("/orders/:id/status", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, g.RequireAdmin)
	return e
}

func TestRequireAdmin(t *testing.T) {
	secret := []byte("test-jwt-secret")
	admin, err := tokens.NewAccessToken("u1", "admin", time.Now().Add(time.Hour), secret)
	require.NoError(t, err)
	user, err := tokens.NewAccessToken("u2", "user", time.Now().Add(time.Hour), secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{name: "no token", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "user role", header: "Bearer " + user, want: http.StatusForbidden},
		{name: "admin header", header: "Bearer " + admin, want: http.StatusOK},
		{name: "admin cookie", cookie: admin, want: http.StatusOK},
	}

	e := newAdminServer(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/orders/1/status", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "accessToken", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAdmin_DisabledWithoutSecret(t *testing.T) {
	e := newAdminServer(nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
