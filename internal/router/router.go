package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/geoattend-api/internal/config"
	"github.com/noah-isme/geoattend-api/internal/handler"
	"github.com/noah-isme/geoattend-api/internal/middleware"
	"github.com/noah-isme/geoattend-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AttendanceHandler *handler.AttendanceHandler
	ReportHandler     *handler.ReportHandler
	ClassHandler      *handler.ClassHandler
	LiveHandler       *handler.LiveHandler
	ProfileHandler    *handler.ProfileHandler
	DependencyChecks  map[string]handler.DependencyCheck
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DependencyChecks))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.AttendanceHandler != nil {
		attendance := api.Group("/attendance", jwtMiddleware)
		deps.AttendanceHandler.Register(attendance, middleware.RateLimit("attendance-mark", cfg.MarkRateLimit, cfg.MarkRateWindow))
	}

	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(api.Group("/users", jwtMiddleware))
	}

	classes := api.Group("/classes", jwtMiddleware)
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(classes)
	}
	if deps.LiveHandler != nil {
		deps.LiveHandler.Register(classes)
	}
	if deps.ClassHandler != nil {
		deps.ClassHandler.Register(classes)
	}
}
