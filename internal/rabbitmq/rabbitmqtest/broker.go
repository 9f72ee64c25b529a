// Package rabbitmqtest provides an in-memory topic broker that satisfies the
// rabbitmq.Dialer seam. It routes with the same pattern rules as a real topic
// exchange, drops exclusive queues with their connection and forgets
// non-durable exchanges across an outage.
package rabbitmqtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/marminbh/parking-svc/internal/events"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
)

// ErrBrokerDown is returned by Dial during an outage.
var ErrBrokerDown = errors.New("rabbitmqtest: broker unreachable")

const deliveryBuffer = 1024

// Published is a message observed by the broker.
type Published struct {
	Exchange   string
	RoutingKey string
	Body       []byte
}

// AckCounts summarizes how deliveries were settled.
type AckCounts struct {
	Acked   int
	Nacked  int
	Requeue int
}

type exchange struct {
	kind    string
	durable bool
}

type consumerEntry struct {
	tag        string
	ch         *Channel
	deliveries chan amqp.Delivery
	closed     bool
}

type queue struct {
	name      string
	owner     *Conn
	exclusive bool
	bindings  []events.Binding
	consumers []*consumerEntry
	pending   []Published
	next      int
}

// Broker is an in-memory AMQP topic broker.
type Broker struct {
	mu        sync.Mutex
	down      bool
	exchanges map[string]exchange
	queues    map[string]*queue
	conns     map[*Conn]struct{}
	published []Published
	acks      AckCounts
	dials     int
	seq       int
}

// NewBroker returns a reachable broker with no exchanges.
func NewBroker() *Broker {
	return &Broker{
		exchanges: make(map[string]exchange),
		queues:    make(map[string]*queue),
		conns:     make(map[*Conn]struct{}),
	}
}

// Dialer returns a rabbitmq.Dialer connected to this broker.
func (b *Broker) Dialer() rabbitmq.Dialer {
	return func(url string, cfg amqp.Config) (rabbitmq.Conn, error) {
		return b.Dial()
	}
}

// Dial opens a new connection, or fails while the broker is down.
func (b *Broker) Dial() (*Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.down {
		return nil, ErrBrokerDown
	}
	c := &Conn{broker: b}
	b.conns[c] = struct{}{}
	return c, nil
}

// Dials reports how many connection attempts were made.
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Outage simulates a broker restart: every connection is forced closed, and
// non-durable exchanges and exclusive queues are lost. Dials fail until Restore.
func (b *Broker) Outage() {
	b.mu.Lock()
	b.down = true
	conns := make([]*Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	for name, ex := range b.exchanges {
		if !ex.durable {
			delete(b.exchanges, name)
		}
	}
	b.mu.Unlock()

	for _, c := range conns {
		c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "broker shutdown", Server: true})
	}
}

// Restore makes the broker reachable again.
func (b *Broker) Restore() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = false
}

// HasExchange reports whether name is currently declared.
func (b *Broker) HasExchange(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.exchanges[name]
	return ok
}

// Bindings returns every binding currently registered.
func (b *Broker) Bindings() []events.Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Binding
	for _, q := range b.queues {
		out = append(out, q.bindings...)
	}
	return out
}

// Published returns every message accepted by an exchange.
func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// ConsumerCount returns the number of live consumers across all queues.
func (b *Broker) ConsumerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, q := range b.queues {
		for _, c := range q.consumers {
			if !c.closed {
				n++
			}
		}
	}
	return n
}

// Acks returns the settlement counters.
func (b *Broker) Acks() AckCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acks
}

func (b *Broker) nextName(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

// route delivers msg to every queue with a matching binding. A queue bound by
// several matching patterns still receives a single copy. Callers hold b.mu.
func (b *Broker) route(msg Published) {
	for _, q := range b.queues {
		for _, binding := range q.bindings {
			if binding.Exchange == msg.Exchange && binding.Matches(msg.RoutingKey) {
				q.pending = append(q.pending, msg)
				b.flush(q)
				break
			}
		}
	}
}

// flush hands pending messages to consumers round-robin. Callers hold b.mu.
func (b *Broker) flush(q *queue) {
	for len(q.pending) > 0 {
		live := q.consumers[:0]
		for _, c := range q.consumers {
			if !c.closed {
				live = append(live, c)
			}
		}
		q.consumers = live
		if len(live) == 0 {
			return
		}

		c := live[q.next%len(live)]
		q.next++
		msg := q.pending[0]
		q.pending = q.pending[1:]

		c.ch.tag++
		d := amqp.Delivery{
			Acknowledger: ackFunc{broker: b},
			ContentType:  "application/json",
			ConsumerTag:  c.tag,
			DeliveryTag:  c.ch.tag,
			Exchange:     msg.Exchange,
			RoutingKey:   msg.RoutingKey,
			Body:         msg.Body,
		}
		select {
		case c.deliveries <- d:
		default:
			// consumer is not draining; a real broker would apply flow control
		}
	}
}

type ackFunc struct {
	broker *Broker
}

func (a ackFunc) Ack(tag uint64, multiple bool) error {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	a.broker.acks.Acked++
	return nil
}

func (a ackFunc) Nack(tag uint64, multiple bool, requeue bool) error {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	a.broker.acks.Nacked++
	if requeue {
		a.broker.acks.Requeue++
	}
	return nil
}

func (a ackFunc) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

// Conn is a fake broker connection.
type Conn struct {
	broker   *Broker
	closed   bool
	channels []*Channel
	notify   []chan *amqp.Error
}

// Channel opens a channel on the connection.
func (c *Conn) Channel() (rabbitmq.Channel, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &Channel{conn: c}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *Conn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *Conn) IsClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

// Close closes the connection gracefully.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *Conn) shutdown(reason *amqp.Error) {
	b := c.broker
	b.mu.Lock()
	if c.closed {
		b.mu.Unlock()
		return
	}
	c.closed = true
	delete(b.conns, c)

	for name, q := range b.queues {
		if q.exclusive && q.owner == c {
			delete(b.queues, name)
		}
	}
	var notify []chan *amqp.Error
	for _, ch := range c.channels {
		notify = append(notify, ch.closeLocked()...)
	}
	notify2 := c.notify
	c.notify = nil
	b.mu.Unlock()

	// channel listeners first, then connection listeners, as amqp091 does
	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	for _, n := range notify2 {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
}

// Channel is a fake broker channel.
type Channel struct {
	conn      *Conn
	closed    bool
	tag       uint64
	consumers []*consumerEntry
	notify    []chan *amqp.Error
}

func (ch *Channel) broker() *Broker { return ch.conn.broker }

// closeLocked marks the channel closed and closes its delivery streams. It
// returns the close listeners so they can be signalled without the lock held.
func (ch *Channel) closeLocked() []chan *amqp.Error {
	if ch.closed {
		return nil
	}
	ch.closed = true
	for _, c := range ch.consumers {
		if !c.closed {
			c.closed = true
			close(c.deliveries)
		}
	}
	notify := ch.notify
	ch.notify = nil
	return notify
}

func (ch *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if existing, ok := b.exchanges[name]; ok {
		if existing.kind != kind || existing.durable != durable {
			return &amqp.Error{Code: amqp.PreconditionFailed, Reason: "PRECONDITION_FAILED - inequivalent arg for exchange " + name}
		}
		return nil
	}
	b.exchanges[name] = exchange{kind: kind, durable: durable}
	return nil
}

func (ch *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.Queue{}, amqp.ErrClosed
	}
	if name == "" {
		name = b.nextName("amq.gen-")
	}
	if _, ok := b.queues[name]; !ok {
		b.queues[name] = &queue{name: name, owner: ch.conn, exclusive: exclusive}
	}
	return amqp.Queue{Name: name}, nil
}

func (ch *Channel) QueueBind(name, key, exchangeName string, noWait bool, args amqp.Table) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	q, ok := b.queues[name]
	if !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue " + name}
	}
	if _, ok := b.exchanges[exchangeName]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange " + exchangeName}
	}
	q.bindings = append(q.bindings, events.Binding{Queue: name, Exchange: exchangeName, Pattern: key})
	return nil
}

func (ch *Channel) Consume(queueName, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return nil, amqp.ErrClosed
	}
	q, ok := b.queues[queueName]
	if !ok {
		return nil, &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue " + queueName}
	}
	if consumer == "" {
		consumer = b.nextName("ctag-")
	}
	entry := &consumerEntry{tag: consumer, ch: ch, deliveries: make(chan amqp.Delivery, deliveryBuffer)}
	ch.consumers = append(ch.consumers, entry)
	q.consumers = append(q.consumers, entry)
	b.flush(q)
	return entry.deliveries, nil
}

func (ch *Channel) PublishWithContext(ctx context.Context, exchangeName, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		return amqp.ErrClosed
	}
	if _, ok := b.exchanges[exchangeName]; !ok {
		return &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no exchange " + exchangeName}
	}
	p := Published{Exchange: exchangeName, RoutingKey: key, Body: append([]byte(nil), msg.Body...)}
	b.published = append(b.published, p)
	b.route(p)
	return nil
}

func (ch *Channel) Cancel(consumer string, noWait bool) error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range ch.consumers {
		if c.tag == consumer && !c.closed {
			c.closed = true
			close(c.deliveries)
		}
	}
	return nil
}

func (ch *Channel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch.closed {
		close(receiver)
		return receiver
	}
	ch.notify = append(ch.notify, receiver)
	return receiver
}

func (ch *Channel) IsClosed() bool {
	b := ch.broker()
	b.mu.Lock()
	defer b.mu.Unlock()
	return ch.closed
}

func (ch *Channel) Close() error {
	b := ch.broker()
	b.mu.Lock()
	notify := ch.closeLocked()
	b.mu.Unlock()
	for _, n := range notify {
		close(n)
	}
	return nil
}
