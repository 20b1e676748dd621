package handlers

import (
	"errors"

	"gamification-service/services"

	"github.com/gofiber/fiber/v2"
)

// SetupEventRoutes wires inbound achievement event ingestion. Producers
// deliver at-least-once; duplicates answer 200 with a duplicate marker so
// the caller stops retrying.
func SetupEventRoutes(app *fiber.App, pipeline *services.EventPipeline) {
	app.Post("/events", func(c *fiber.Ctx) error {
		var raw services.RawEvent
		if err := c.BodyParser(&raw); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := pipeline.ProcessEvent(raw)
		if err != nil {
			if errors.Is(err, services.ErrMalformedEvent) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "malformed event",
					"cause": err.Error(),
				})
			}
			if errors.Is(err, services.ErrConcurrentUpdate) {
				// Transient — the producer redelivers and the idempotency
				// marker makes the retry safe.
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "concurrent update conflict, retry delivery",
					"cause": err.Error(),
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "event processing failed",
				"cause": err.Error(),
			})
		}

		if result.Duplicate {
			return c.JSON(fiber.Map{
				"status":    "duplicate",
				"event_key": result.EventKey,
			})
		}
		if result.Unrecognized {
			return c.JSON(fiber.Map{
				"status":    "ignored",
				"event_key": result.EventKey,
			})
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status":     "applied",
			"event_key":  result.EventKey,
			"applied":    result.Applied,
			"new_badges": result.NewBadges,
		})
	})
}
