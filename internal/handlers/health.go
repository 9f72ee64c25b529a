package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/marminbh/parking-svc/internal/database"
	"github.com/marminbh/parking-svc/internal/rabbitmq"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthHandler aggregates dependency checks for GET /health
type HealthHandler struct {
	service string
	checks  []namedCheck
}

func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{service: service}
}

// Add registers a named dependency check.
func (h *HealthHandler) Add(name string, check Check) *HealthHandler {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	return h
}

// BusState is implemented by *rabbitmq.Connection.
type BusState interface {
	IsHealthy() bool
	State() rabbitmq.State
}

func BusCheck(bus BusState) Check {
	return func(ctx context.Context) error {
		if bus == nil || !bus.IsHealthy() {
			state := rabbitmq.StateDisconnected
			if bus != nil {
				state = bus.State()
			}
			return errors.New(state.String())
		}
		return nil
	}
}

func DatabaseCheck(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		return database.HealthCheck(ctx, db)
	}
}

func RedisCheck(client redis.Cmdable) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]string, len(h.checks))
	status := "healthy"

	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			services[nc.name] = "unhealthy: " + err.Error()
			status = "unhealthy"
			continue
		}
		services[nc.name] = "healthy"
	}

	response := HealthResponse{
		Status:    status,
		Service:   h.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}
