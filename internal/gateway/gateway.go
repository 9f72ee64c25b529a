// Package gateway forwards /api/* requests to the owning service.
package gateway

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
)

const Banner = "API Gateway is running"

// Route maps a public path prefix onto a service base URL and path.
type Route struct {
	Prefix  string
	Target  string
	Rewrite string
}

// Routes returns the public API routes for the configured services.
func Routes(services config.ServicesConfig) []Route {
	return []Route{
		{Prefix: "/api/spots", Target: services.SpotURL, Rewrite: "/spots"},
		{Prefix: "/api/reservations", Target: services.ReservationURL, Rewrite: "/reservations"},
		{Prefix: "/api/bills", Target: services.BillingURL, Rewrite: "/bills"},
		{Prefix: "/api/sensor", Target: services.SensorURL, Rewrite: "/events"},
	}
}

type Gateway struct {
	routes  []Route
	timeout time.Duration
	logger  *zap.Logger
}

func New(routes []Route, timeout time.Duration, logger *zap.Logger) *Gateway {
	return &Gateway{routes: routes, timeout: timeout, logger: logger}
}

// Register mounts the banner, the health check and every proxied prefix.
func (g *Gateway) Register(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Banner)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	for _, r := range g.routes {
		h := g.forward(r)
		app.All(r.Prefix, h)
		app.All(r.Prefix+"/*", h)
		g.logger.Info("Proxy route registered",
			zap.String("prefix", r.Prefix),
			zap.String("target", r.Target+r.Rewrite),
		)
	}
}

func (g *Gateway) forward(r Route) fiber.Handler {
	base := strings.TrimRight(r.Target, "/") + r.Rewrite
	return func(c *fiber.Ctx) error {
		path := strings.Clone(c.Path())
		target := base + strings.TrimPrefix(path, r.Prefix)
		if q := c.Request().URI().QueryString(); len(q) > 0 {
			target += "?" + string(q)
		}

		var err error
		if g.timeout > 0 {
			err = proxy.DoTimeout(c, target, g.timeout)
		} else {
			err = proxy.Do(c, target)
		}
		if err != nil {
			g.logger.Error("Upstream request failed",
				zap.String("path", path),
				zap.String("target", target),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "upstream service unavailable",
			})
		}
		return nil
	}
}
