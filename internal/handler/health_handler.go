package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cohort-assistant/internal/config"
	"github.com/noah-isme/cohort-assistant/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Dev       bool      `json:"dev"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Service:   cfg.AppName,
			Dev:       cfg.Dev,
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
