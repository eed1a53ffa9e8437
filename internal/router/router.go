package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cohort-assistant/internal/config"
	"github.com/noah-isme/cohort-assistant/internal/handler"
	"github.com/noah-isme/cohort-assistant/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler *handler.AssignmentHandler
	TimetableHandler  *handler.TimetableHandler
	UptimeHandler     *handler.UptimeHandler
	VerifyHandler     *handler.VerifyHandler
	SentimentHandler  *handler.SentimentHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(api.Group("/assignments"))
	}
	if deps.TimetableHandler != nil {
		deps.TimetableHandler.Register(api)
	}
	if deps.UptimeHandler != nil {
		deps.UptimeHandler.Register(api.Group("/uptime"))
		deps.UptimeHandler.RegisterFeed(app.Group("/ws"))
	}
	if deps.VerifyHandler != nil {
		deps.VerifyHandler.Register(api.Group("/verify"))
	}
	if deps.SentimentHandler != nil {
		deps.SentimentHandler.Register(api.Group("/sentiment"))
	}
}
