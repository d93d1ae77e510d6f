package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvIntDefault(t *testing.T) {
	t.Setenv("ORDERS_TEST_INT", "42")
	assert.Equal(t, 42, EnvIntDefault("ORDERS_TEST_INT", 1))

	t.Setenv("ORDERS_TEST_INT", "nope")
	assert.Equal(t, 1, EnvIntDefault("ORDERS_TEST_INT", 1))

	assert.Equal(t, 7, EnvIntDefault("ORDERS_TEST_MISSING", 7))
}

func TestEnvDurationDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "duration string", value: "750ms", want: 750 * time.Millisecond},
		{name: "plain millis", value: "1500", want: 1500 * time.Millisecond},
		{name: "garbage", value: "soon", want: 5 * time.Second},
		{name: "negative", value: "-1s", want: 5 * time.Second},
		{name: "empty", value: "", want: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORDERS_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, EnvDurationDefault("ORDERS_TEST_DURATION", 5*time.Second))
		})
	}
}

func TestLoad_PortFallsBackToPORT(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "3002")

	cfg := Load()
	assert.Equal(t, 3002, cfg.ServerPort)

	t.Setenv("SERVER_PORT", "9000")
	assert.Equal(t, 9000, Load().ServerPort)
}

func TestRequireHelpers(t *testing.T) {
	require.NoError(t, RequireNonEmpty("x", "X"))
	require.EqualError(t, RequireNonEmpty("", "DATABASE_URL"), "missing required env DATABASE_URL")

	require.NoError(t, RequireOneOf("kafka", "EVENTS_BROKER", "kafka", "rabbitmq"))
	require.Error(t, RequireOneOf("nats", "EVENTS_BROKER", "kafka", "rabbitmq"))
}
