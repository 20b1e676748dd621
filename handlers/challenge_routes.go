package handlers

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"gamification-service/middleware"
	"gamification-service/models"
	"gamification-service/services"
	"gamification-service/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetupChallengeRoutes wires the admin lifecycle: challenge CRUD,
// submit/approve/reject, assignments, and badge type management.
func SetupChallengeRoutes(app *fiber.App, db *gorm.DB, workflow *services.ApprovalWorkflow) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	// Create: always lands in draft, code slugged from title
	adminGroup.Post("/challenges", func(c *fiber.Ctx) error {
		var req struct {
			Title           string                `json:"title" validate:"required"`
			Description     string                `json:"description"`
			Scope           models.ChallengeScope `json:"scope" validate:"required,oneof=USER GLOBAL"`
			Metric          string                `json:"metric" validate:"required"`
			TargetThreshold int64                 `json:"target_threshold" validate:"required,min=1"`
			RewardPoints    int64                 `json:"reward_points"`
			StartAt         time.Time             `json:"start_at" validate:"required"`
			EndAt           time.Time             `json:"end_at" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if req.Title == "" || req.Metric == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and metric are required"})
		}
		if req.Scope != models.ScopeUser && req.Scope != models.ScopeGlobal {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scope must be USER or GLOBAL"})
		}
		if req.TargetThreshold < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "target_threshold must be at least 1"})
		}
		if !req.StartAt.Before(req.EndAt) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_at must be before end_at"})
		}

		challenge := &models.Challenge{
			ID:              uuid.NewString(),
			Code:            slug.Make(req.Title),
			Title:           req.Title,
			Description:     req.Description,
			Scope:           req.Scope,
			Metric:          req.Metric,
			TargetThreshold: req.TargetThreshold,
			RewardPoints:    req.RewardPoints,
			StartAt:         req.StartAt,
			EndAt:           req.EndAt,
			Active:          true,
			ApprovalStatus:  models.ApprovalDraft,
		}
		if err := db.Create(challenge).Error; err != nil {
			log.Printf("DB Error creating challenge: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create challenge"})
		}
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})

	adminGroup.Get("/challenges", func(c *fiber.Ctx) error {
		query := db.Order("created_at DESC")
		if status := c.Query("status"); status != "" {
			query = query.Where("approval_status = ?", status)
		}
		var challenges []models.Challenge
		if err := query.Find(&challenges).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch challenges"})
		}
		return c.JSON(challenges)
	})

	// Edits are only allowed while the challenge is out of review
	adminGroup.Put("/challenges/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid challenge ID"})
		}

		var challenge models.Challenge
		if err := db.First(&challenge, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Challenge not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		if challenge.ApprovalStatus != models.ApprovalDraft && challenge.ApprovalStatus != models.ApprovalRejected {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":          "challenge can only be edited in draft or rejected state",
				"current_status": challenge.ApprovalStatus,
			})
		}

		var req struct {
			Title           *string    `json:"title"`
			Description     *string    `json:"description"`
			Metric          *string    `json:"metric"`
			TargetThreshold *int64     `json:"target_threshold"`
			RewardPoints    *int64     `json:"reward_points"`
			StartAt         *time.Time `json:"start_at"`
			EndAt           *time.Time `json:"end_at"`
			Active          *bool      `json:"active"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		if req.Title != nil {
			challenge.Title = *req.Title
			challenge.Code = slug.Make(*req.Title)
		}
		if req.Description != nil {
			challenge.Description = *req.Description
		}
		if req.Metric != nil {
			challenge.Metric = *req.Metric
		}
		if req.TargetThreshold != nil {
			if *req.TargetThreshold < 1 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "target_threshold must be at least 1"})
			}
			challenge.TargetThreshold = *req.TargetThreshold
		}
		if req.RewardPoints != nil {
			challenge.RewardPoints = *req.RewardPoints
		}
		if req.StartAt != nil {
			challenge.StartAt = *req.StartAt
		}
		if req.EndAt != nil {
			challenge.EndAt = *req.EndAt
		}
		if req.Active != nil {
			challenge.Active = *req.Active
		}
		if !challenge.StartAt.Before(challenge.EndAt) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_at must be before end_at"})
		}

		if err := db.Save(&challenge).Error; err != nil {
			log.Printf("DB Error updating challenge: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update challenge"})
		}
		return c.JSON(challenge)
	})

	adminGroup.Post("/challenges/:id/submit", func(c *fiber.Ctx) error {
		return handleTransition(c, func(id, actor, _ string) (*models.Challenge, error) {
			return workflow.Submit(id, actor)
		})
	})
	adminGroup.Post("/challenges/:id/approve", func(c *fiber.Ctx) error {
		return handleTransition(c, workflow.Approve)
	})
	adminGroup.Post("/challenges/:id/reject", func(c *fiber.Ctx) error {
		return handleTransition(c, workflow.Reject)
	})

	adminGroup.Get("/challenges/:id/history", func(c *fiber.Ctx) error {
		entries, err := workflow.History(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
		}
		return c.JSON(entries)
	})

	// Assignment opt-in for USER-scoped challenges
	adminGroup.Post("/challenges/:id/assignments", func(c *fiber.Ctx) error {
		challengeID := c.Params("id")
		var req struct {
			UserID string `json:"user_id" validate:"required,uuid"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if _, err := uuid.Parse(req.UserID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user_id"})
		}

		assignment := models.ChallengeAssignment{
			ID:             uuid.NewString(),
			ChallengeID:    challengeID,
			ExternalUserID: req.UserID,
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment)
		if res.Error != nil {
			log.Printf("DB Error creating assignment: %v", res.Error)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create assignment"})
		}
		if res.RowsAffected == 0 {
			return c.JSON(fiber.Map{"message": "already assigned"})
		}
		return c.Status(fiber.StatusCreated).JSON(assignment)
	})

	adminGroup.Delete("/challenges/:id/assignments/:userId", func(c *fiber.Ctx) error {
		res := db.Where("challenge_id = ? AND external_user_id = ?", c.Params("id"), c.Params("userId")).
			Delete(&models.ChallengeAssignment{})
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete assignment"})
		}
		return c.JSON(fiber.Map{"message": "OK", "deleted": res.RowsAffected})
	})

	// Badge type management
	adminGroup.Post("/badges", func(c *fiber.Ctx) error {
		var req struct {
			Code         string           `json:"code" validate:"required"`
			Name         string           `json:"name" validate:"required"`
			Description  string           `json:"description"`
			Rarity       string           `json:"rarity"`
			Threshold    map[string]int64 `json:"threshold" validate:"required"`
			RewardPoints int64            `json:"reward_points"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Code == "" || req.Name == "" || len(req.Threshold) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code, name, and threshold are required"})
		}
		if req.Rarity == "" {
			req.Rarity = "common"
		}

		badge := &models.BadgeType{
			ID:           uuid.NewString(),
			Code:         req.Code,
			Name:         req.Name,
			Description:  req.Description,
			Rarity:       req.Rarity,
			Threshold:    req.Threshold,
			RewardPoints: req.RewardPoints,
		}
		if err := db.Create(badge).Error; err != nil {
			log.Printf("DB Error creating badge type: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create badge type"})
		}
		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	adminGroup.Get("/badges", func(c *fiber.Ctx) error {
		var badges []models.BadgeType
		if err := db.Order("created_at ASC").Find(&badges).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch badge types"})
		}
		return c.JSON(badges)
	})

	adminGroup.Post("/badges/:id/icon", func(c *fiber.Ctx) error {
		id := c.Params("id")
		var badge models.BadgeType
		if err := db.First(&badge, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Badge type not found"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		fileHeader, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}

		key := fmt.Sprintf("badges/%s%s", slug.Make(badge.Code), filepath.Ext(fileHeader.Filename))
		iconURL, err := utils.UploadBadgeIcon(fileHeader, key)
		if err != nil {
			log.Printf("R2 upload failed for badge %s: %v", badge.Code, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload icon"})
		}

		badge.IconURL = iconURL
		if err := db.Save(&badge).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save icon URL"})
		}
		return c.JSON(fiber.Map{"message": "OK", "icon_url": iconURL})
	})
}

// handleTransition maps workflow results to HTTP: InvalidTransition
// surfaces the current state with a 409; terminal re-requests are 200s.
func handleTransition(c *fiber.Ctx, fn func(id, actor, comment string) (*models.Challenge, error)) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid challenge ID"})
	}

	actor, _ := c.Locals("user_id").(string)
	var req struct {
		Comment string `json:"comment"`
	}
	_ = c.BodyParser(&req) // comment is optional; ignore empty bodies

	challenge, err := fn(id, actor, req.Comment)
	if err != nil {
		var invalid *services.InvalidTransitionError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":          "invalid transition",
				"current_status": invalid.Current,
				"requested":      invalid.Requested,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "transition failed",
			"cause": err.Error(),
		})
	}
	return c.JSON(challenge)
}
