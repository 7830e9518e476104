package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is any dependency health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	appName  string
	required map[string]Pinger
	optional map[string]Pinger
}

// NewHealthHandler reports 503 when a required dependency fails; optional
// ones only show as degraded.
func NewHealthHandler(appName string, required, optional map[string]Pinger) *HealthHandler {
	return &HealthHandler{appName: appName, required: required, optional: optional}
}

// GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	status, code := "ok", fiber.StatusOK
	for name, p := range h.required {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status, code = "down", fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	for name, p := range h.optional {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "degraded"
			if code == fiber.StatusOK {
				status = "degraded"
			}
			continue
		}
		checks[name] = "ok"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"message": h.appName + " is running",
		"checks":  checks,
	})
}
