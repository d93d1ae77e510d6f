package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_service/pkg/metrics"
	middleware "github.com/Skotchmaster/order_service/pkg/middleware/auth"
	"github.com/Skotchmaster/order_service/pkg/middleware/webhook"
)

type Deps struct {
	OrderHandler *OrderHTTP
	Guard        *middleware.RoleGuard
	Webhook      *webhook.Verifier
	Metrics      *metrics.Metrics
	Ready        func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	guard := d.Guard
	if guard == nil {
		guard = middleware.NewRoleGuard(nil)
	}

	orders := e.Group("/orders")
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	if d.OrderHandler.Search != nil {
		orders.GET("/search", d.OrderHandler.SearchOrders)
	}
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/payment-session", d.OrderHandler.CreatePaymentSession)
	orders.PATCH("/:id/status", d.OrderHandler.ChangeOrderStatus, guard.RequireAdmin)

	// Unsigned payment confirmations are never accepted; without a secret
	// payments arrive through the broker only.
	if d.Webhook.Enabled() {
		e.POST("/webhooks/payment-succeeded", d.OrderHandler.PaymentSucceeded, d.Webhook.RequireSignature)
	}
}
