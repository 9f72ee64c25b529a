package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/consumer"
	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
	"github.com/marminbh/parking-svc/internal/rabbitmq/rabbitmqtest"
)

func testConfig(service string) *config.Config {
	return &config.Config{
		Service: service,
		RabbitMQ: config.RabbitMQConfig{
			Exchange:       "parking_events",
			ReconnectDelay: 20 * time.Millisecond,
		},
	}
}

func health(t *testing.T, svc *Service) (int, map[string]string) {
	t.Helper()
	app := fiber.New()
	app.Get("/health", svc.Health.HealthCheck)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body.Services
}

func TestService_TracksBusState(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	svc := NewService(testConfig(config.ServiceSensor), zaptest.NewLogger(t), rabbitmq.WithDialer(broker.Dialer()))
	t.Cleanup(svc.Close)

	status, _ := health(t, svc)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	svc.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.WaitConnected(ctx))

	status, services := health(t, svc)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", services["rabbitmq"])
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.BusConnected))

	broker.Outage()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(svc.Metrics.BusConnected) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestService_SubscribeAndPublish(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	svc := NewService(testConfig(config.ServiceNotification), zaptest.NewLogger(t), rabbitmq.WithDialer(broker.Dialer()))
	t.Cleanup(svc.Close)

	got := make(chan string, 1)
	require.NoError(t, svc.Subscribe("notification", []string{events.PatternAll},
		consumer.HandlerFunc(func(ctx context.Context, env events.Envelope) error {
			got <- env.RoutingKey
			return nil
		})))

	svc.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svc.WaitConnected(ctx))

	require.NoError(t, svc.Publisher().Publish(ctx, events.SensorFreed{SpotID: "s1", Timestamp: time.Now()}))

	select {
	case key := <-got:
		assert.Equal(t, events.RoutingKeySensorFreed, key)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestService_UseDatabaseAddsHealthCheckAndCloses(t *testing.T) {
	svc := NewService(testConfig(config.ServiceBilling), zaptest.NewLogger(t), rabbitmq.WithDialer(rabbitmqtest.NewBroker().Dialer()))

	db, err := database.Open(sqlite.Open("file:service?mode=memory&cache=shared"), zaptest.NewLogger(t))
	require.NoError(t, err)
	svc.UseDatabase(db)

	_, services := health(t, svc)
	assert.Equal(t, "healthy", services["database"])

	svc.Close()
	assert.Error(t, database.HealthCheck(context.Background(), db))
}
