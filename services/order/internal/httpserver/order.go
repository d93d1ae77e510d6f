package httpserver

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/order_service/pkg/logging"
	"github.com/Skotchmaster/order_service/pkg/paymentclient"
	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/events"
	"github.com/Skotchmaster/order_service/services/order/internal/search"
	"github.com/Skotchmaster/order_service/services/order/internal/service"
	"github.com/Skotchmaster/order_service/services/order/internal/transport"
	"github.com/Skotchmaster/order_service/services/order/internal/util"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req transport.CreateOrderRequest) (*service.CreateOrderResult, error)
	ListOrders(ctx context.Context, q transport.ListOrdersQuery) (*transport.OrdersPage, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*transport.OrderResponse, error)
	ChangeOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*transport.OrderResponse, error)
	CreatePaymentSession(ctx context.Context, id uuid.UUID) (*paymentclient.Session, error)
}

type PaymentApplier interface {
	Apply(ctx context.Context, ev service.PaymentSucceeded) error
}

type OrderSearcher interface {
	SearchOrders(ctx context.Context, q search.Query) (int64, []search.OrderDocument, error)
}

type OrderHTTP struct {
	Svc      OrderService
	Payments PaymentApplier
	// Search is nil when no search backend is configured.
	Search OrderSearcher
}

func parseID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}
	if len(req.Items) == 0 {
		return badRequest(l, "create_order_error", "items required", nil)
	}
	for _, it := range req.Items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			return badRequest(l, "create_order_error", "productId and quantity must be positive", nil)
		}
	}

	res, err := h.Svc.CreateOrder(ctx, req)
	if err != nil {
		return serviceError(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", res.Order.ID)
	return c.JSON(http.StatusCreated, res)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_orders")

	q := transport.ListOrdersQuery{
		Page:  util.ParseIntDefault(c.QueryParam("page"), 1),
		Limit: util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	}
	if q.Page < 1 || q.Limit < 1 || q.Limit > util.MaxPageSize {
		return badRequest(l, "list_orders_error", "page and limit must be positive, limit at most 100", nil)
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			return badRequest(l, "list_orders_error", err.Error(), err)
		}
		q.Status = &st
	}

	page, err := h.Svc.ListOrders(ctx, q)
	if err != nil {
		return serviceError(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := parseID(c)
	if err != nil {
		return badRequest(l, "get_order_error", "id is not a uuid", err)
	}

	order, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		return serviceError(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) ChangeOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.change_status")

	id, err := parseID(c)
	if err != nil {
		return badRequest(l, "change_status_error", "id is not a uuid", err)
	}

	var req transport.ChangeStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "change_status_error", "invalid body", err)
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return badRequest(l, "change_status_error", err.Error(), err)
	}

	order, err := h.Svc.ChangeOrderStatus(ctx, id, status)
	if err != nil {
		return serviceError(l, "change_status_error", err)
	}

	l.Info("change_status_success", "order_id", id, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CreatePaymentSession(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.payment_session")

	id, err := parseID(c)
	if err != nil {
		return badRequest(l, "payment_session_error", "id is not a uuid", err)
	}

	session, err := h.Svc.CreatePaymentSession(ctx, id)
	if err != nil {
		return serviceError(l, "payment_session_error", err)
	}
	return c.JSON(http.StatusCreated, session)
}

// PaymentSucceeded is the webhook twin of the payment.succeeded consumer.
// The sender has no use for the outcome, so every signed request is accepted.
func (h *OrderHTTP) PaymentSucceeded(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.payment_webhook")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		l.Warn("payment_webhook_dropped", "reason", "cannot read body", "error", err)
		return c.NoContent(http.StatusAccepted)
	}

	ev, err := events.ParsePaymentSucceeded(body)
	if err != nil {
		l.Warn("payment_webhook_dropped", "reason", "invalid payload", "error", err)
		return c.NoContent(http.StatusAccepted)
	}

	if err := h.Payments.Apply(logging.IntoContext(ctx, l), ev); err == nil {
		l.Info("payment_webhook_applied", "order_id", ev.OrderID)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *OrderHTTP) SearchOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.search_orders")

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	if size > util.MaxPageSize {
		size = util.MaxPageSize
	}
	from, size := util.Calculate(page, size)

	q := search.Query{From: from, Size: size}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := domain.ParseStatus(raw)
		if err != nil {
			return badRequest(l, "search_orders_error", err.Error(), err)
		}
		q.Status = &st
	}
	if raw := c.QueryParam("productId"); raw != "" {
		q.ProductID = int64(util.ParseIntDefault(raw, 0))
		if q.ProductID <= 0 {
			return badRequest(l, "search_orders_error", "productId must be a positive integer", nil)
		}
	}

	total, docs, err := h.Search.SearchOrders(ctx, q)
	if err != nil {
		l.Error("search_orders_error", "status", http.StatusBadGateway, "reason", "search backend failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, ErrorBody{Category: service.KindRemoteCall, Message: "search backend failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "data": docs})
}
