package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/order_service/pkg/broker"
	"github.com/Skotchmaster/order_service/pkg/catalogclient"
	pkgdb "github.com/Skotchmaster/order_service/pkg/db"
	"github.com/Skotchmaster/order_service/pkg/logging"
	"github.com/Skotchmaster/order_service/pkg/metrics"
	middleware "github.com/Skotchmaster/order_service/pkg/middleware/auth"
	loggingmw "github.com/Skotchmaster/order_service/pkg/middleware/logging"
	"github.com/Skotchmaster/order_service/pkg/middleware/webhook"
	"github.com/Skotchmaster/order_service/pkg/paymentclient"
	"github.com/Skotchmaster/order_service/pkg/rpcclient"

	ordercfg "github.com/Skotchmaster/order_service/services/order/internal/config"
	"github.com/Skotchmaster/order_service/services/order/internal/events"
	"github.com/Skotchmaster/order_service/services/order/internal/httpserver"
	"github.com/Skotchmaster/order_service/services/order/internal/repo"
	"github.com/Skotchmaster/order_service/services/order/internal/search"
	"github.com/Skotchmaster/order_service/services/order/internal/service"
	"github.com/Skotchmaster/order_service/services/order/migrations"
)

func main() {
	if err := godotenv.Load("services/order/.env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := ordercfg.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := pkgdb.Migrate(cfg.DatabaseURL, migrations.FS, migrations.Dir, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("orders", reg)

	catalog := catalogclient.NewClient(cfg.ProductsServiceURL, cfg.RPCTimeout, rpcclient.WithObserver(m.ObserveRPC))
	payments := paymentclient.NewClient(cfg.PaymentsServiceURL, cfg.RPCTimeout, rpcclient.WithObserver(m.ObserveRPC))

	publisher, subscriber, err := newBroker(cfg)
	if err != nil {
		log.Fatalf("broker: %v", err)
	}

	orderRepo := &repo.GormRepo{DB: db}
	svc := &service.OrderService{
		Repo:     orderRepo,
		Catalog:  catalog,
		Payments: payments,
		Notifier: &events.OrderPublisher{Producer: publisher, Topic: cfg.OrderEventsTopic},
		Metrics:  m,
		Currency: cfg.PaymentCurrency,
	}

	handler := &httpserver.OrderHTTP{Svc: svc}
	if cfg.ElasticURL != "" {
		es, err := search.NewClient(cfg.ElasticURL, cfg.ElasticUser, cfg.ElasticPassword)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		ix := &search.ESIndexer{ES: es, Index: cfg.ElasticOrdersIndex}
		svc.Indexer = ix
		handler.Search = ix
	}

	paymentHandler := &events.PaymentHandler{Svc: svc}
	handler.Payments = paymentHandler

	if len(cfg.WebhookSecret) == 0 {
		logger.Warn("payment_webhook_disabled", "reason", "PAYMENT_WEBHOOK_SECRET not set")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(m.Middleware())
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler: handler,
		Guard:        middleware.NewRoleGuard(cfg.JWTAccessSecret),
		Webhook:      webhook.NewVerifier(cfg.WebhookSecret),
		Metrics:      m,
		Ready:        func(ctx context.Context) error { return pkgdb.Ping(ctx, db) },
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logger.Info("http_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if subscriber != nil {
		g.Go(func() error {
			broker.SubscribeForever(logging.IntoContext(gctx, logger), subscriber, cfg.PaymentSucceededTopic, paymentHandler.Handle, cfg.ResubscribeDelay)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("order_service_failed", "error", err)
	}

	if subscriber != nil {
		_ = subscriber.Close()
	}
	_ = publisher.Close()
	_ = pkgdb.Close(db)

	logger.Info("order_service_stopped")
}

// newBroker picks the transport. Without kafka brokers the service runs HTTP only,
// taking payment confirmations through the signed webhook.
func newBroker(cfg ordercfg.ServiceConfig) (broker.Publisher, broker.Subscriber, error) {
	switch cfg.EventsBroker {
	case ordercfg.BrokerRabbitMQ:
		r, err := broker.DialRabbit(cfg.RabbitMQURL, cfg.ServiceName)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		if !cfg.KafkaEnabled() {
			return broker.Noop{}, nil, nil
		}
		return broker.NewKafkaProducer(cfg.KafkaBrokers), broker.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID), nil
	}
}
