package tests

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/order_service/pkg/catalogclient"
	pkgdb "github.com/Skotchmaster/order_service/pkg/db"
	"github.com/Skotchmaster/order_service/pkg/paymentclient"
	"github.com/Skotchmaster/order_service/services/order/internal/domain"
	"github.com/Skotchmaster/order_service/services/order/internal/repo"
	"github.com/Skotchmaster/order_service/services/order/internal/service"
	"github.com/Skotchmaster/order_service/services/order/internal/transport"
	"github.com/Skotchmaster/order_service/services/order/migrations"
)

type integrationEnv struct {
	db  *gorm.DB
	rp  *repo.GormRepo
	svc *service.OrderService
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	t.Helper()

	dsn := os.Getenv("ORDER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORDER_TEST_DATABASE_URL is required for tests")
	}

	require.NoError(t, pkgdb.Migrate(dsn, migrations.FS, migrations.Dir, slog.Default()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := pkgdb.Open(ctx, dsn)
	require.NoError(t, err)

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []int64 `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := []map[string]any{}
		for _, id := range req.IDs {
			if id == 7 {
				out = append(out, map[string]any{"id": 7, "name": "Widget", "price": 9.99})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	payments := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://pay.example/s","successUrl":"https://shop/ok","cancelUrl":"https://shop/cancel"}`))
	}))

	rp := &repo.GormRepo{DB: db}
	env := &integrationEnv{
		db: db,
		rp: rp,
		svc: &service.OrderService{
			Repo:     rp,
			Catalog:  catalogclient.NewClient(catalog.URL, 2*time.Second),
			Payments: paymentclient.NewClient(payments.URL, 2*time.Second),
		},
	}

	t.Cleanup(func() {
		catalog.Close()
		payments.Close()
		truncateTables(t, db)
		_ = pkgdb.Close(db)
	})

	return env
}

func truncateTables(t *testing.T, db *gorm.DB) {
	t.Helper()

	db.Exec("TRUNCATE TABLE order_receipts, order_items, orders CASCADE")
}

func TestCreateAndGetOrder(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	res, err := env.svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.CreateOrderItem{{ProductID: 7, Quantity: 2}}})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.98").Equal(res.Order.TotalAmount))
	assert.Equal(t, "https://pay.example/s", res.PaymentSession.URL)

	got, err := env.svc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Widget", got.Items[0].Name)
	assert.True(t, decimal.RequireFromString("9.99").Equal(got.Items[0].Price))
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	env := newIntegrationEnv(t)

	_, err := env.svc.CreateOrder(context.Background(), transport.CreateOrderRequest{Items: []transport.CreateOrderItem{
		{ProductID: 7, Quantity: 1}, {ProductID: 8, Quantity: 1},
	}})
	assert.ErrorIs(t, err, service.ErrNotFound)

	var n int64
	require.NoError(t, env.db.Table("orders").Count(&n).Error)
	assert.Zero(t, n)
}

func TestConcurrentPaymentRedelivery(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	res, err := env.svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.CreateOrderItem{{ProductID: 7, Quantity: 1}}})
	require.NoError(t, err)

	ev := service.PaymentSucceeded{OrderID: res.Order.ID, Reference: "ch_1", ReceiptURL: "https://pay.example/r"}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.svc.OnPaymentSucceeded(ctx, ev)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	n, err := env.rp.CountReceipts(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := env.rp.FindOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.True(t, got.Paid)
}

func TestStatusCompareAndSet(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()

	res, err := env.svc.CreateOrder(ctx, transport.CreateOrderRequest{Items: []transport.CreateOrderItem{{ProductID: 7, Quantity: 1}}})
	require.NoError(t, err)

	require.NoError(t, env.rp.UpdateStatus(ctx, res.Order.ID, domain.StatusPending, domain.StatusConfirmed))
	assert.ErrorIs(t, env.rp.UpdateStatus(ctx, res.Order.ID, domain.StatusPending, domain.StatusCancelled), repo.ErrStaleStatus)
}
