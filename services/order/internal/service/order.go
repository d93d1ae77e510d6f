package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/order_service/pkg/catalogclient"
	"github.com/Skotchmaster/order_service/pkg/logging"
	"github.com/Skotchmaster/order_service/pkg/paymentclient"
	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/models"
	"github.com/Skotchmaster/order_service/services/order/internal/repo"
	"github.com/Skotchmaster/order_service/services/order/internal/transport"
	"github.com/Skotchmaster/order_service/services/order/internal/util"
)

const DefaultCurrency = "usd"

type Catalog interface {
	ValidateProducts(ctx context.Context, ids []int64) ([]catalogclient.Product, error)
}

type Payments interface {
	CreatePaymentSession(ctx context.Context, req paymentclient.SessionRequest) (*paymentclient.Session, error)
}

type Repository interface {
	CreateOrderWithItems(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter repo.ListFilter, offset, limit int) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	MarkPaid(ctx context.Context, id uuid.UUID, reference, receiptURL string, paidAt time.Time) error
}

// Notifier receives committed order changes. Implementations must not fail the caller.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	StatusChanged(ctx context.Context, order *models.Order, from domain.OrderStatus)
	OrderPaid(ctx context.Context, order *models.Order)
}

type Indexer interface {
	IndexOrder(ctx context.Context, order *models.Order) error
}

type Recorder interface {
	OrderCreated()
	StatusChanged(to string)
	PaymentEvent(outcome string)
}

// PaymentSucceeded is the payment subsystem's confirmation for one order.
type PaymentSucceeded struct {
	OrderID    uuid.UUID
	Reference  string
	ReceiptURL string
}

type CreateOrderResult struct {
	Order          transport.OrderResponse `json:"order"`
	PaymentSession *paymentclient.Session  `json:"paymentSession"`
}

// OrderService is the only writer of order state. Notifier, Indexer and
// Metrics are optional.
type OrderService struct {
	Repo     Repository
	Catalog  Catalog
	Payments Payments
	Notifier Notifier
	Indexer  Indexer
	Metrics  Recorder
	Currency string
	Now      func() time.Time
}

func (s *OrderService) CreateOrder(ctx context.Context, req transport.CreateOrderRequest) (*CreateOrderResult, error) {
	l := logging.FromContext(ctx).With("svc", "order.create_order")

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items required", ErrValidation)
	}
	for i, it := range req.Items {
		if it.ProductID <= 0 {
			return nil, fmt.Errorf("%w: items[%d]: productId must be > 0", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: items[%d]: quantity must be > 0", ErrValidation, i)
		}
	}

	order := &models.Order{Status: domain.StatusPending}
	for _, it := range req.Items {
		order.Items = append(order.Items, models.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	products, err := s.Catalog.ValidateProducts(ctx, order.ProductIDs())
	if err != nil {
		return nil, remoteErr(err, "catalog: validate products")
	}
	byID := catalogclient.Index(products)

	total := decimal.Zero
	for i := range order.Items {
		item := &order.Items[i]
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrNotFound, item.ProductID)
		}
		if !p.Price.Equal(p.Price.Round(2)) {
			return nil, fmt.Errorf("%w: catalog price %s of product %d has more than 2 decimal places", ErrRemoteCall, p.Price, item.ProductID)
		}
		item.Price = p.Price
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		order.TotalItems += item.Quantity
	}
	order.TotalAmount = total

	if err := s.Repo.CreateOrderWithItems(ctx, order); err != nil {
		return nil, persistenceErr(err, "create order")
	}
	l.Info("order_created", "order_id", order.ID, "total_amount", order.TotalAmount.String(), "total_items", order.TotalItems)

	if s.Metrics != nil {
		s.Metrics.OrderCreated()
	}
	s.project(ctx, order)
	if s.Notifier != nil {
		s.Notifier.OrderCreated(ctx, order)
	}

	names := productNames(products)
	session, err := s.startPaymentSession(ctx, order, names)
	if err != nil {
		l.Error("payment_session_failed", "order_id", order.ID, "reason", "order kept pending", "error", err)
		return nil, err
	}

	return &CreateOrderResult{
		Order:          transport.NewOrderResponse(order, names),
		PaymentSession: session,
	}, nil
}

// CreatePaymentSession starts a new session for an order still awaiting payment.
func (s *OrderService) CreatePaymentSession(ctx context.Context, id uuid.UUID) (*paymentclient.Session, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.Payable() {
		return nil, fmt.Errorf("%w: order %s is %s", ErrConflict, id, order.Status)
	}

	names, err := s.lookupNames(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.startPaymentSession(ctx, order, names)
}

func (s *OrderService) startPaymentSession(ctx context.Context, order *models.Order, names map[int64]string) (*paymentclient.Session, error) {
	req := paymentclient.SessionRequest{
		OrderID:  order.ID.String(),
		Currency: s.currency(),
		Items:    make([]paymentclient.Item, 0, len(order.Items)),
	}
	for _, it := range order.Items {
		req.Items = append(req.Items, paymentclient.Item{
			Name:     names[it.ProductID],
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	session, err := s.Payments.CreatePaymentSession(ctx, req)
	if err != nil {
		return nil, remoteErr(err, "payments: order %s", order.ID)
	}
	return session, nil
}

func (s *OrderService) ListOrders(ctx context.Context, q transport.ListOrdersQuery) (*transport.OrdersPage, error) {
	if q.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrValidation)
	}
	if q.Limit < 1 || q.Limit > util.MaxPageSize {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, util.MaxPageSize)
	}
	if q.Status != nil && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *q.Status)
	}

	offset, limit := util.Calculate(q.Page, q.Limit)
	orders, total, err := s.Repo.ListOrders(ctx, repo.ListFilter{Status: q.Status}, offset, limit)
	if err != nil {
		return nil, persistenceErr(err, "list orders")
	}

	page := &transport.OrdersPage{
		Data: make([]transport.OrderResponse, 0, len(orders)),
		Meta: transport.PageMeta{
			Page:     q.Page,
			Limit:    limit,
			Total:    total,
			LastPage: util.LastPage(total, limit),
		},
	}
	for i := range orders {
		page.Data = append(page.Data, transport.NewOrderResponse(&orders[i], nil))
	}
	return page, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*transport.OrderResponse, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	names, err := s.lookupNames(ctx, order)
	if err != nil {
		return nil, err
	}

	resp := transport.NewOrderResponse(order, names)
	return &resp, nil
}

// lookupNames fetches catalog names for the order's products. A non-empty
// order whose products are all unknown to the catalog is reported as NotFound.
func (s *OrderService) lookupNames(ctx context.Context, order *models.Order) (map[int64]string, error) {
	ids := order.ProductIDs()
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	products, err := s.Catalog.ValidateProducts(ctx, ids)
	if err != nil {
		return nil, remoteErr(err, "catalog: products of order %s", order.ID)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: products of order %s are missing from catalog", ErrNotFound, order.ID)
	}
	return productNames(products), nil
}

func (s *OrderService) ChangeOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*transport.OrderResponse, error) {
	l := logging.FromContext(ctx).With("svc", "order.change_status")

	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if from == status {
		resp := transport.NewOrderResponse(order, nil)
		return &resp, nil
	}
	switch {
	case from.Terminal():
		return nil, fmt.Errorf("%w: order %s is %s and can no longer change status", ErrConflict, id, from)
	case status == domain.StatusPaid:
		return nil, fmt.Errorf("%w: order %s becomes PAID only through a payment confirmation", ErrConflict, id)
	case !domain.CanTransition(from, status):
		return nil, fmt.Errorf("%w: order %s cannot move from %s to %s", ErrConflict, id, from, status)
	}

	if err := s.Repo.UpdateStatus(ctx, id, from, status); err != nil {
		switch {
		case errors.Is(err, repo.ErrStaleStatus):
			return nil, fmt.Errorf("%w: order %s changed while moving from %s to %s", ErrConflict, id, from, status)
		case errors.Is(err, repo.ErrNotFound):
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		default:
			return nil, persistenceErr(err, "update status of order %s", id)
		}
	}
	l.Info("order_status_changed", "order_id", id, "from", from, "to", status)

	if s.Metrics != nil {
		s.Metrics.StatusChanged(string(status))
	}

	updated, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.project(ctx, updated)
	if s.Notifier != nil {
		s.Notifier.StatusChanged(ctx, updated, from)
	}

	resp := transport.NewOrderResponse(updated, nil)
	return &resp, nil
}

// OnPaymentSucceeded marks the order paid and stores its receipt.
// A redelivery carrying the reference already recorded is a no-op.
func (s *OrderService) OnPaymentSucceeded(ctx context.Context, p PaymentSucceeded) error {
	l := logging.FromContext(ctx).With("svc", "order.payment_succeeded", "order_id", p.OrderID)

	if p.OrderID == uuid.Nil {
		s.paymentOutcome("invalid")
		return fmt.Errorf("%w: orderId required", ErrValidation)
	}
	if p.Reference == "" {
		s.paymentOutcome("invalid")
		return fmt.Errorf("%w: payment reference required for order %s", ErrValidation, p.OrderID)
	}

	err := s.Repo.MarkPaid(ctx, p.OrderID, p.Reference, p.ReceiptURL, s.now())
	switch {
	case err == nil:
	case errors.Is(err, repo.ErrNotFound):
		s.paymentOutcome("not_found")
		l.Warn("payment_rejected", "reason", "unknown order")
		return fmt.Errorf("%w: order %s", ErrNotFound, p.OrderID)
	case errors.Is(err, repo.ErrNotPayable):
		return s.checkRedelivery(ctx, l, p)
	default:
		s.paymentOutcome("failed")
		return persistenceErr(err, "mark order %s paid", p.OrderID)
	}

	s.paymentOutcome("applied")
	l.Info("order_paid", "payment_reference", p.Reference)

	order, err := s.findOrder(ctx, p.OrderID)
	if err != nil {
		l.Warn("order_paid_reload_failed", "error", err)
		return nil
	}
	s.project(ctx, order)
	if s.Notifier != nil {
		s.Notifier.OrderPaid(ctx, order)
	}
	return nil
}

func (s *OrderService) checkRedelivery(ctx context.Context, l *slog.Logger, p PaymentSucceeded) error {
	order, err := s.findOrder(ctx, p.OrderID)
	if err != nil {
		s.paymentOutcome("failed")
		return err
	}

	if order.Status == domain.StatusPaid && order.PaymentReference != nil && *order.PaymentReference == p.Reference {
		s.paymentOutcome("duplicate")
		l.Info("payment_duplicate", "reason", "already paid with this reference")
		return nil
	}

	s.paymentOutcome("rejected")
	l.Warn("payment_rejected", "reason", "order not payable", "status", order.Status)
	return fmt.Errorf("%w: order %s is %s, payment %s not applied", ErrConflict, p.OrderID, order.Status, p.Reference)
}

func (s *OrderService) findOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, persistenceErr(err, "find order %s", id)
	}
	return order, nil
}

func (s *OrderService) project(ctx context.Context, order *models.Order) {
	if s.Indexer == nil {
		return
	}
	if err := s.Indexer.IndexOrder(ctx, order); err != nil {
		logging.FromContext(ctx).Warn("order_index_failed", "order_id", order.ID, "error", err)
	}
}

func (s *OrderService) paymentOutcome(outcome string) {
	if s.Metrics != nil {
		s.Metrics.PaymentEvent(outcome)
	}
}

func (s *OrderService) currency() string {
	if s.Currency == "" {
		return DefaultCurrency
	}
	return s.Currency
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func productNames(products []catalogclient.Product) map[int64]string {
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names
}
