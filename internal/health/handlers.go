package health

import (
	"context"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/db"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const checkTimeout = 3 * time.Second

// RegisterRoutes mounts the database check. A nil querier always reports down.
func RegisterRoutes(r fiber.Router, q db.Querier, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	r.Get("/db", func(c *fiber.Ctx) error {
		if q == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "error": "database not configured"})
		}
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), checkTimeout)
		defer cancel()

		var one int
		if err := q.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			log.Warn("database check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "error": "database unreachable"})
		}
		return c.JSON(fiber.Map{"status": "ok", "latencyMs": time.Since(start).Milliseconds()})
	})
}
