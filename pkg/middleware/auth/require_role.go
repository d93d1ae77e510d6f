package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_service/pkg/tokens"
)

type RoleGuard struct {
	JWTSecret []byte
}

func NewRoleGuard(secret []byte) *RoleGuard {
	return &RoleGuard{JWTSecret: secret}
}

// Enabled is false when no secret is configured; routes are then left open.
func (g *RoleGuard) Enabled() bool { return len(g.JWTSecret) > 0 }

func (g *RoleGuard) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return g.RequireRole("admin")(next)
}

func (g *RoleGuard) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !g.Enabled() {
				return next(c)
			}

			raw := bearerToken(c)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, g.JWTSecret)
			if err != nil || claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			if claims.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, role+" access required")
			}

			c.Set("user_id", claims.Subject)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if v, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	if ck, err := c.Cookie("accessToken"); err == nil {
		return ck.Value
	}
	return ""
}
