package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/metrics"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
)

// Bus is the part of rabbitmq.Connection a subscriber needs.
type Bus interface {
	Exchange() string
	OnConnect(name string, hook rabbitmq.TopologyHook) error
}

// Subscriber owns an exclusive queue bound to a set of patterns. The queue is
// redeclared on every connect; deliveries are handled one at a time.
type Subscriber struct {
	name     string
	patterns []string
	handler  Handler
	bus      Bus
	logger   *zap.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu orders setup against Stop so no loop is added once stopping begins.
	mu          sync.Mutex
	stopped     bool
	channel     rabbitmq.Channel
	consumerTag string
}

// NewSubscriber creates a subscriber. Call Start to register it with the bus.
func NewSubscriber(bus Bus, name string, patterns []string, handler Handler, logger *zap.Logger, m *metrics.Metrics) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		name:     name,
		patterns: patterns,
		handler:  handler,
		bus:      bus,
		logger:   logger.With(zap.String("subscriber", name)),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the subscriber's topology hook.
func (s *Subscriber) Start() error {
	if len(s.patterns) == 0 {
		return fmt.Errorf("subscriber %s has no binding patterns", s.name)
	}
	return s.bus.OnConnect(s.name, s.setup)
}

// Stop cancels the broker consumer, stops processing and waits for the
// in-flight delivery to finish. Reconnects after Stop do not resubscribe.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.channel != nil && !s.channel.IsClosed() {
		if err := s.channel.Cancel(s.consumerTag, false); err != nil {
			s.logger.Warn("Failed to cancel consumer", zap.String("consumer_tag", s.consumerTag), zap.Error(err))
		}
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Subscriber stopped")
}

func (s *Subscriber) setup(ch rabbitmq.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	q, err := rabbitmq.DeclareExclusiveQueue(ch, s.bus.Exchange(), s.patterns)
	if err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("%s-%s", s.name, uuid.NewString())
	messages, err := ch.Consume(
		q.Name,
		consumerTag,
		false, // autoAck (we'll manually ACK)
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", q.Name, err)
	}

	s.logger.Info("Consumer registered",
		zap.String("queue", q.Name),
		zap.Strings("patterns", s.patterns),
		zap.String("consumer_tag", consumerTag),
	)

	s.channel, s.consumerTag = ch, consumerTag
	s.wg.Add(1)
	go s.processMessages(q.Name, messages)
	return nil
}

func (s *Subscriber) processMessages(queue string, messages <-chan amqp.Delivery) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				// the connection supervisor redeclares the queue and starts a new loop
				s.logger.Warn("Delivery channel closed", zap.String("queue", queue))
				return
			}
			result := ProcessMessage(s.ctx, s.logger, queue, msg, s.handler)
			s.metrics.Consumed(s.name, msg.RoutingKey, result)
		}
	}
}
