package worker

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type executeRequest struct {
	Command     string `json:"command"`
	ProjectName string `json:"projectName"`
}

// NewServer exposes health and direct execution for debugging a sandbox.
func NewServer(w *Worker, p *Processor, shell string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "agentdock-sandbox-worker",
		DisableStartupMessage: true,
	})
	started := time.Now()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"shell":     shell,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"queues": fiber.Map{
				"consecutive_errors": w.ConsecutiveErrors(),
				"processed":          w.Processed(),
			},
			"uptime": time.Since(started).Seconds(),
			"host":   CollectStats(),
		})
	})

	app.Post("/execute", func(c *fiber.Ctx) error {
		var req executeRequest
		if err := c.BodyParser(&req); err != nil || req.Command == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "command required"})
		}
		res := p.Run(c.UserContext(), req.Command, req.ProjectName)
		if !res.Success {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   res.Error,
				"stdout":  res.Stdout,
				"stderr":  res.Stderr,
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"stdout":  res.Stdout,
			"stderr":  res.Stderr,
		})
	})

	return app
}
