package handlers

import (
	"strings"

	"gamification-service/middleware"
	"gamification-service/models"
	"gamification-service/services"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// SetupUserRoutes wires the read-only query surface: a user's progress
// list, badge list, and reward summary. No side effects.
func SetupUserRoutes(app *fiber.App, db *gorm.DB, ledger *services.ProgressLedger, badges *services.BadgeEngine, rewards *services.RewardAggregator) {
	userGroup := app.Group("/s/user", middleware.UserContextMiddleware())

	userGroup.Get("/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		rows, err := ledger.ListProgress(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get progress",
				"cause": err.Error(),
			})
		}

		// Join in the challenge definitions for display
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ChallengeID)
		}
		challenges := map[string]models.Challenge{}
		if len(ids) > 0 {
			var defs []models.Challenge
			if err := db.Where("id IN ?", ids).Find(&defs).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "failed to get challenge definitions",
					"cause": err.Error(),
				})
			}
			for _, d := range defs {
				challenges[d.ID] = d
			}
		}

		response := make([]fiber.Map, 0, len(rows))
		for _, r := range rows {
			entry := fiber.Map{
				"challenge_id":  r.ChallengeID,
				"cumulative":    r.Cumulative,
				"completed":     r.Completed,
				"completed_at":  r.CompletedAt,
				"last_event_at": r.LastEventAt,
			}
			if ch, ok := challenges[r.ChallengeID]; ok {
				entry["code"] = ch.Code
				entry["title"] = ch.Title
				entry["target_threshold"] = ch.TargetThreshold
				entry["reward_points"] = ch.RewardPoints
			}
			response = append(response, entry)
		}
		return c.JSON(response)
	})

	userGroup.Get("/badges", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		userBadges, types, err := badges.ListBadges(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get badges",
				"cause": err.Error(),
			})
		}

		response := make([]fiber.Map, 0, len(userBadges))
		for _, ub := range userBadges {
			entry := fiber.Map{
				"id":            ub.ID,
				"badge_type_id": ub.BadgeTypeID,
				"granted_at":    ub.GrantedAt,
			}
			if bt, ok := types[ub.BadgeTypeID]; ok {
				entry["code"] = bt.Code
				entry["name"] = bt.Name
				entry["description"] = bt.Description
				entry["icon_url"] = bt.IconURL
				entry["rarity"] = bt.Rarity
				entry["rarity_label"] = displayLabel(bt.Rarity)
			}
			response = append(response, entry)
		}
		return c.JSON(response)
	})

	userGroup.Get("/rewards", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		summary, categories, err := rewards.Summary(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get reward summary",
				"cause": err.Error(),
			})
		}

		byCategory := make([]fiber.Map, 0, len(categories))
		for _, cat := range categories {
			byCategory = append(byCategory, fiber.Map{
				"category": cat.Category,
				"label":    displayLabel(cat.Category),
				"grants":   cat.Grants,
				"points":   cat.Points,
			})
		}
		return c.JSON(fiber.Map{
			"total_points": summary.TotalPoints,
			"categories":   byCategory,
		})
	})
}

// displayLabel humanizes a snake_case category or rarity value.
// cases.Caser is stateful, so build a fresh one per call.
func displayLabel(raw string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(raw, "_", " "))
}
