package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/marminbh/parking-svc/internal/handlers"
	"github.com/marminbh/parking-svc/internal/metrics"
)

// NewApp creates a fiber app with the middleware every service runs.
func NewApp(appName string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		ServerHeader:          "Fiber",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	return app
}

// SetupCommonRoutes registers the health and metrics endpoints.
func SetupCommonRoutes(app *fiber.App, healthHandler *handlers.HealthHandler, m *metrics.Metrics) {
	app.Get("/health", healthHandler.HealthCheck)
	if m != nil {
		app.Get("/metrics", m.Handler())
	}
}

func SetupSpotRoutes(app *fiber.App, h *handlers.SpotsHandler) {
	spots := app.Group("/spots")
	spots.Get("/", h.List)
	spots.Post("/", h.Create)
	spots.Get("/:id", h.Get)
}

func SetupReservationRoutes(app *fiber.App, h *handlers.ReservationsHandler) {
	reservations := app.Group("/reservations")
	reservations.Get("/", h.List)
	reservations.Post("/", h.Create)
}

func SetupBillingRoutes(app *fiber.App, h *handlers.BillsHandler) {
	app.Get("/bills", h.List)
}

func SetupSensorRoutes(app *fiber.App, h *handlers.SensorHandler) {
	events := app.Group("/events")
	events.Post("/occupied", h.Occupied)
	events.Post("/freed", h.Freed)
}
