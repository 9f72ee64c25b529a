package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
)

// ExchangeKind is the exchange type every service declares.
const ExchangeKind = "topic"

var (
	// ErrNotConnected is returned by Publish while the session is down.
	ErrNotConnected = errors.New("RabbitMQ not connected")
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("RabbitMQ connection closed")
)

// State is the lifecycle state of the broker session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// TopologyHook declares queues, bindings or consumers on a freshly opened channel.
// Hooks run on every successful connect, in registration order.
type TopologyHook func(ch Channel) error

type namedHook struct {
	name string
	fn   TopologyHook
}

// Option customizes a Connection.
type Option func(*Connection)

// WithDialer replaces the AMQP dialer, mostly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Connection) { c.dial = d }
}

// WithReconnectPolicy overrides the delay between connection attempts.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(c *Connection) { c.policy = p }
}

// WithStateListener registers a callback invoked on every state transition.
func WithStateListener(fn func(State)) Option {
	return func(c *Connection) { c.listeners = append(c.listeners, fn) }
}

// WithConnectionName sets the connection_name client property shown in the management UI.
func WithConnectionName(name string) Option {
	return func(c *Connection) { c.name = name }
}

// Connection supervises a single broker connection and channel. It declares the
// exchange and re-runs topology hooks after every reconnect. Publishing never
// waits for the broker to come back.
type Connection struct {
	config    *config.RabbitMQConfig
	logger    *zap.Logger
	dial      Dialer
	policy    ReconnectPolicy
	name      string
	listeners []func(State)

	mu      sync.RWMutex
	conn    Conn
	channel Channel
	state   State
	hooks   []namedHook
	ready   chan struct{}
	started bool
	closed  bool

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewConnection creates a new Connection. Call Start to begin connecting.
func NewConnection(rabbitMQConfig *config.RabbitMQConfig, logger *zap.Logger, opts ...Option) *Connection {
	c := &Connection{
		config:   rabbitMQConfig,
		logger:   logger,
		dial:     DialAMQP,
		policy:   FixedReconnect(rabbitMQConfig.ReconnectDelay),
		name:     "parking-svc",
		ready:    make(chan struct{}),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange returns the name of the exchange this connection declares.
func (c *Connection) Exchange() string {
	return c.config.Exchange
}

// OnConnect registers a topology hook. If the session is already up the hook
// runs immediately on the current channel.
func (c *Connection) OnConnect(name string, hook TopologyHook) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.hooks = append(c.hooks, namedHook{name: name, fn: hook})

	if c.state == StateConnected && c.channel != nil {
		if err := hook(c.channel); err != nil {
			return fmt.Errorf("topology hook %s failed: %w", name, err)
		}
	}
	return nil
}

// Start launches the supervisor goroutine. It returns immediately; the first
// connection attempt happens in the background.
func (c *Connection) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.supervise()
}

// WaitConnected blocks until the session is connected or ctx is done.
func (c *Connection) WaitConnected(ctx context.Context) error {
	for {
		c.mu.RLock()
		ready := c.ready
		state := c.state
		closed := c.closed
		c.mu.RUnlock()

		if closed {
			return ErrClosed
		}
		if state == StateConnected {
			return nil
		}
		select {
		case <-ready:
		case <-c.stopChan:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) supervise() {
	defer close(c.done)

	attempt := 0
	for {
		attempt++
		c.logger.Info("Attempting connection to RabbitMQ", zap.Int("attempt", attempt))

		connClose, channelClose, err := c.connect()
		if err != nil {
			delay := c.policy.Next()
			c.logger.Warn("Connection to RabbitMQ failed, retrying...",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if !c.sleep(delay) {
				return
			}
			continue
		}

		c.logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
		attempt = 0

		var closeErr *amqp.Error
		select {
		case <-c.stopChan:
			return
		case closeErr = <-connClose:
		case closeErr = <-channelClose:
		}

		c.teardown()
		if closeErr != nil {
			c.logger.Error("RabbitMQ connection lost, reconnecting",
				zap.Error(closeErr),
				zap.String("reason", closeErr.Reason),
			)
		} else {
			c.logger.Warn("RabbitMQ connection closed, reconnecting")
		}

		if !c.sleep(c.policy.Next()) {
			return
		}
	}
}

func (c *Connection) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

// connect opens a connection and channel, declares the exchange and runs
// the registered hooks. The session is published as connected only once
// every hook has succeeded.
func (c *Connection) connect() (chan *amqp.Error, chan *amqp.Error, error) {
	c.setState(StateConnecting)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": c.name,
		},
	}

	conn, err := c.dial(c.config.ConnectionURL(), amqpConfig)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		c.setState(StateDisconnected)
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		c.config.Exchange, // name
		ExchangeKind,      // kind
		false,             // durable
		false,             // auto-delete
		false,             // internal
		false,             // no-wait
		nil,               // args
	); err != nil {
		_ = conn.Close()
		c.setState(StateDisconnected)
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", c.config.Exchange, err)
	}

	connClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	channelClose := ch.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	hooks := append([]namedHook(nil), c.hooks...)
	for _, h := range hooks {
		if err := h.fn(ch); err != nil {
			c.conn = nil
			c.channel = nil
			c.mu.Unlock()
			_ = conn.Close()
			c.setState(StateDisconnected)
			return nil, nil, fmt.Errorf("topology hook %s failed: %w", h.name, err)
		}
	}
	c.mu.Unlock()

	c.setState(StateConnected)
	c.logger.Info("RabbitMQ session ready",
		zap.String("host", c.config.Host),
		zap.String("port", c.config.Port),
		zap.String("exchange", c.config.Exchange),
		zap.Int("topology_hooks", len(hooks)),
	)
	return connClose, channelClose, nil
}

func (c *Connection) teardown() {
	c.mu.Lock()
	conn, ch := c.conn, c.channel
	c.conn, c.channel = nil, nil
	c.mu.Unlock()

	c.setState(StateDisconnected)
	if ch != nil && !ch.IsClosed() {
		_ = ch.Close()
	}
	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	if s == StateConnected && prev != StateConnected {
		close(c.ready)
	} else if s != StateConnected && prev == StateConnected {
		c.ready = make(chan struct{})
	}
	listeners := c.listeners
	c.mu.Unlock()

	if prev == s {
		return
	}
	for _, fn := range listeners {
		fn(s)
	}
}

// Publish sends body to the exchange under routingKey. It fails fast with
// ErrNotConnected while the session is down; nothing is buffered.
func (c *Connection) Publish(ctx context.Context, routingKey string, body []byte) error {
	c.mu.RLock()
	ch := c.channel
	state := c.state
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if state != StateConnected || ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	err := ch.PublishWithContext(ctx,
		c.config.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

// State returns the current session state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsHealthy checks if the connection and channel are usable
func (c *Connection) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateConnected &&
		c.conn != nil && !c.conn.IsClosed() &&
		c.channel != nil && !c.channel.IsClosed()
}

// Close stops reconnection and closes the channel and connection.
func (c *Connection) Close() {
	c.mu.Lock()
	c.closed = true
	started := c.started
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stopChan) })
	if started {
		<-c.done
	}
	c.teardown()
	c.logger.Info("RabbitMQ connection closed")
}
