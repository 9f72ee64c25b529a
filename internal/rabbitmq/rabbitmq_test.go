package rabbitmq_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
	"github.com/marminbh/parking-svc/internal/rabbitmq/rabbitmqtest"
)

const (
	testExchange = "parking_events"
	testDelay    = 20 * time.Millisecond
)

func newTestConnection(t *testing.T, broker *rabbitmqtest.Broker, opts ...rabbitmq.Option) *rabbitmq.Connection {
	t.Helper()
	cfg := &config.RabbitMQConfig{
		Host:           "localhost",
		Port:           "5672",
		Exchange:       testExchange,
		ReconnectDelay: testDelay,
	}
	opts = append([]rabbitmq.Option{rabbitmq.WithDialer(broker.Dialer())}, opts...)
	conn := rabbitmq.NewConnection(cfg, zaptest.NewLogger(t), opts...)
	t.Cleanup(conn.Close)
	return conn
}

func waitConnected(t *testing.T, conn *rabbitmq.Connection) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.WaitConnected(ctx))
}

func TestConnection_DeclaresExchangeOnConnect(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	conn := newTestConnection(t, broker)

	assert.Equal(t, rabbitmq.StateDisconnected, conn.State())
	conn.Start()
	waitConnected(t, conn)

	assert.True(t, broker.HasExchange(testExchange))
	assert.True(t, conn.IsHealthy())
	assert.Equal(t, "connected", conn.State().String())
}

func TestConnection_PublishFailsFastWhenDown(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	broker.Outage()
	conn := newTestConnection(t, broker)
	conn.Start()

	start := time.Now()
	err := conn.Publish(context.Background(), "sensor.occupied", []byte(`{}`))
	assert.ErrorIs(t, err, rabbitmq.ErrNotConnected)
	assert.Less(t, time.Since(start), testDelay)
	assert.Empty(t, broker.Published())
}

func TestConnection_RetriesUntilBrokerIsReachable(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	broker.Outage()
	conn := newTestConnection(t, broker)
	conn.Start()

	require.Eventually(t, func() bool { return broker.Dials() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, rabbitmq.StateDisconnected, conn.State())

	broker.Restore()
	waitConnected(t, conn)
}

func TestConnection_ReconnectsAndReplaysTopology(t *testing.T) {
	broker := rabbitmqtest.NewBroker()

	var (
		mu     sync.Mutex
		states []rabbitmq.State
	)
	conn := newTestConnection(t, broker, rabbitmq.WithStateListener(func(s rabbitmq.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))

	var hookRuns atomic.Int32
	require.NoError(t, conn.OnConnect("topology-check", func(ch rabbitmq.Channel) error {
		hookRuns.Add(1)
		_, err := rabbitmq.DeclareExclusiveQueue(ch, testExchange, []string{"sensor.*"})
		return err
	}))

	conn.Start()
	waitConnected(t, conn)
	require.Len(t, broker.Bindings(), 1)
	require.NoError(t, conn.Publish(context.Background(), "sensor.freed", []byte(`{}`)))

	broker.Outage()
	require.Eventually(t, func() bool { return conn.State() != rabbitmq.StateConnected }, time.Second, time.Millisecond)
	assert.False(t, broker.HasExchange(testExchange))
	assert.Empty(t, broker.Bindings())
	assert.ErrorIs(t, conn.Publish(context.Background(), "sensor.freed", []byte(`{}`)), rabbitmq.ErrNotConnected)

	restoredAt := time.Now()
	broker.Restore()
	waitConnected(t, conn)
	// one retry interval plus scheduling slack
	assert.Less(t, time.Since(restoredAt), 3*testDelay+100*time.Millisecond)

	assert.True(t, broker.HasExchange(testExchange))
	assert.Len(t, broker.Bindings(), 1)
	assert.Equal(t, int32(2), hookRuns.Load())
	require.NoError(t, conn.Publish(context.Background(), "sensor.freed", []byte(`{}`)))
	assert.Len(t, broker.Published(), 2)

	conn.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, rabbitmq.StateConnecting)
	assert.Contains(t, states, rabbitmq.StateConnected)
	assert.Equal(t, rabbitmq.StateDisconnected, states[len(states)-1])
}

func TestConnection_HookFailureRetries(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	conn := newTestConnection(t, broker)

	var calls atomic.Int32
	require.NoError(t, conn.OnConnect("flaky", func(ch rabbitmq.Channel) error {
		if calls.Add(1) == 1 {
			return errors.New("boom")
		}
		return nil
	}))

	conn.Start()
	waitConnected(t, conn)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, broker.Dials(), 2)
}

func TestConnection_OnConnectRunsImmediatelyWhenUp(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	conn := newTestConnection(t, broker)
	conn.Start()
	waitConnected(t, conn)

	ran := false
	require.NoError(t, conn.OnConnect("late", func(ch rabbitmq.Channel) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestConnection_ClosedRejectsWork(t *testing.T) {
	broker := rabbitmqtest.NewBroker()
	conn := newTestConnection(t, broker)
	conn.Start()
	waitConnected(t, conn)
	conn.Close()

	assert.ErrorIs(t, conn.Publish(context.Background(), "sensor.freed", nil), rabbitmq.ErrClosed)
	assert.ErrorIs(t, conn.OnConnect("x", func(rabbitmq.Channel) error { return nil }), rabbitmq.ErrClosed)
	assert.ErrorIs(t, conn.WaitConnected(context.Background()), rabbitmq.ErrClosed)
}

func TestReconnectPolicy(t *testing.T) {
	assert.Equal(t, rabbitmq.DefaultReconnectDelay, rabbitmq.ReconnectPolicy{}.Next())
	assert.Equal(t, time.Second, rabbitmq.FixedReconnect(time.Second).Next())

	p := rabbitmq.ReconnectPolicy{Delay: time.Second, Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := p.Next()
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
