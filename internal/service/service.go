package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marminbh/parking-svc/internal/config"
	"github.com/marminbh/parking-svc/internal/consumer"
	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/metrics"
	"github.com/marminbh/parking-svc/internal/publisher"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
)

// Service holds the dependencies of one service process.
type Service struct {
	Config  *config.Config
	DB      *gorm.DB
	Logger  *zap.Logger
	Bus     *rabbitmq.Connection
	Metrics *metrics.Metrics
	Health  *handlers.HealthHandler

	mu          sync.Mutex
	subscribers []*consumer.Subscriber
	closers     []func()
}

// NewService wires the bus connection, metrics and health checks. The bus is
// not started until Start is called.
func NewService(cfg *config.Config, logger *zap.Logger, opts ...rabbitmq.Option) *Service {
	m := metrics.New()
	opts = append([]rabbitmq.Option{
		rabbitmq.WithConnectionName(cfg.Service),
		rabbitmq.WithStateListener(func(s rabbitmq.State) {
			m.SetConnected(s == rabbitmq.StateConnected)
		}),
	}, opts...)
	if cfg.RabbitMQ.Jitter > 0 {
		opts = append(opts, rabbitmq.WithReconnectPolicy(rabbitmq.ReconnectPolicy{
			Delay:  cfg.RabbitMQ.ReconnectDelay,
			Jitter: cfg.RabbitMQ.Jitter,
		}))
	}
	bus := rabbitmq.NewConnection(&cfg.RabbitMQ, logger.Named("rabbitmq"), opts...)

	return &Service{
		Config:  cfg,
		Logger:  logger,
		Bus:     bus,
		Metrics: m,
		Health:  handlers.NewHealthHandler(cfg.Service).Add("rabbitmq", handlers.BusCheck(bus)),
	}
}

// ConnectDatabase applies the migration set and opens the service database.
func (s *Service) ConnectDatabase(migrationSet string) error {
	if err := database.RunMigrations(&s.Config.Database, migrationSet, s.Logger); err != nil {
		return err
	}
	db, err := database.Connect(&s.Config.Database, s.Logger)
	if err != nil {
		return err
	}
	s.UseDatabase(db)
	return nil
}

// UseDatabase attaches an already opened database.
func (s *Service) UseDatabase(db *gorm.DB) {
	s.DB = db
	s.Health.Add("database", handlers.DatabaseCheck(db))
	s.OnClose(func() {
		if err := database.Close(db, s.Logger); err != nil {
			s.Logger.Error("Error closing database", zap.Error(err))
		}
	})
}

// Publisher returns an event publisher on the service bus.
func (s *Service) Publisher() *publisher.EventPublisher {
	return publisher.New(s.Bus, s.Logger.Named("publisher"), s.Metrics)
}

// Subscribe registers a consumer. Its queue is declared on every connect.
func (s *Service) Subscribe(name string, patterns []string, handler consumer.Handler) error {
	sub := consumer.NewSubscriber(s.Bus, name, patterns, handler, s.Logger.Named("consumer"), s.Metrics)
	if err := sub.Start(); err != nil {
		return fmt.Errorf("failed to start subscriber %s: %w", name, err)
	}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	s.mu.Unlock()
	return nil
}

// OnClose registers cleanup to run on Close, in reverse order.
func (s *Service) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Start begins connecting to the broker in the background. HTTP traffic can
// be served before the first connection succeeds.
func (s *Service) Start() {
	s.Bus.Start()
}

// Close stops subscribers, the bus and then everything registered with OnClose.
func (s *Service) Close() {
	s.mu.Lock()
	subs := s.subscribers
	closers := s.closers
	s.subscribers, s.closers = nil, nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
	s.Bus.Close()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Serve runs app until SIGINT or SIGTERM, then shuts it down and closes the service.
func (s *Service) Serve(app *fiber.App) {
	Run(app, s.Config.Server, s.Logger)
	s.Close()
}

// Run listens on the configured address and blocks until SIGINT or SIGTERM.
func Run(app *fiber.App, server config.ServerConfig, logger *zap.Logger) {
	errCh := make(chan error, 1)
	go func() {
		addr := server.Host + ":" + server.Port
		logger.Info("Server starting", zap.String("address", addr))
		errCh <- app.Listen(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
			return
		}
	}

	logger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}
}

// WaitConnected blocks until the bus is connected or ctx is done.
func (s *Service) WaitConnected(ctx context.Context) error {
	return s.Bus.WaitConnected(ctx)
}
