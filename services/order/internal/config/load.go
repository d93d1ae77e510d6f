package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Skotchmaster/order_service/pkg/config"
)

const (
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

type ServiceConfig struct {
	config.Config

	ProductsServiceURL string
	PaymentsServiceURL string
	PaymentCurrency    string
	RPCTimeout         time.Duration

	EventsBroker          string
	KafkaGroupID          string
	PaymentSucceededTopic string
	OrderEventsTopic      string
	ResubscribeDelay      time.Duration

	// WebhookSecret signs payment webhooks; the webhook route is off without it.
	WebhookSecret []byte

	ElasticOrdersIndex string
}

func Load() ServiceConfig {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	return cfg
}

func Read() ServiceConfig {
	base := config.Load()
	if base.ServiceName == "" {
		base.ServiceName = "orders"
	}

	return ServiceConfig{
		Config: base,

		ProductsServiceURL: config.EnvDefault("PRODUCTS_SERVICE_URL", productsURLFromHostPort()),
		PaymentsServiceURL: config.EnvDefault("PAYMENTS_SERVICE_URL", ""),
		PaymentCurrency:    config.EnvDefault("PAYMENT_CURRENCY", "usd"),
		RPCTimeout:         config.EnvDurationDefault("RPC_TIMEOUT", 5*time.Second),

		EventsBroker:          config.EnvDefault("EVENTS_BROKER", BrokerKafka),
		KafkaGroupID:          config.EnvDefault("KAFKA_GROUP_ID", "orders"),
		PaymentSucceededTopic: config.EnvDefault("PAYMENT_SUCCEEDED_TOPIC", "payment.succeeded"),
		OrderEventsTopic:      config.EnvDefault("ORDER_EVENTS_TOPIC", "order_events"),
		ResubscribeDelay:      config.EnvDurationDefault("CONSUMER_RESUBSCRIBE_DELAY", 5*time.Second),

		WebhookSecret: []byte(os.Getenv("PAYMENT_WEBHOOK_SECRET")),

		ElasticOrdersIndex: config.EnvDefault("ES_ORDERS_INDEX", "orders"),
	}
}

func productsURLFromHostPort() string {
	host := config.EnvDefault("PRODUCTS_MICROSERVICE_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", host, config.EnvIntDefault("PRODUCTS_MICROSERVICE_PORT", 80))
}

func (c ServiceConfig) Validate() error {
	return errors.Join(
		config.RequireNonEmpty(c.DatabaseURL, "DATABASE_URL"),
		config.RequireNonEmpty(c.ProductsServiceURL, "PRODUCTS_SERVICE_URL"),
		config.RequireNonEmpty(c.PaymentsServiceURL, "PAYMENTS_SERVICE_URL"),
		config.RequireOneOf(c.EventsBroker, "EVENTS_BROKER", BrokerKafka, BrokerRabbitMQ),
	)
}

// KafkaEnabled is false when no brokers are configured; the service then runs HTTP only.
func (c ServiceConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }
