package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gamification-service/handlers"
	"gamification-service/middleware"
	"gamification-service/models"
	"gamification-service/services"
	"gamification-service/utils"
	"gamification-service/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB — badge icons are the largest payload
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Challenge{},
		&models.ApprovalHistory{},
		&models.ChallengeAssignment{},
		&models.UserChallengeProgress{},
		&models.ProcessedEvent{},
		&models.UserEventStat{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.RewardSummary{},
		&models.RewardCategoryCount{},
		&models.NotificationOutbox{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	pipeline := services.NewEventPipeline(db)
	workflow := services.NewApprovalWorkflow(db)

	if err := pipeline.Badges.SeedDefaults(); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier services.Notifier
	if os.Getenv("NOTIFY_SERVICE_URL") != "" {
		notifier = services.NewHTTPNotifier()
	} else {
		log.Println("⚠️  NOTIFY_SERVICE_URL not set — notifications will only be logged")
		notifier = services.LogNotifier{}
	}
	notifyWorker := workers.NewNotifyWorker(db, notifier)
	go notifyWorker.Start(ctx, 10*time.Second)

	pipeline.Catalog.StartWindowSweep()

	// ✅ Setup routes — gateway auth enforced globally above
	handlers.SetupEventRoutes(app, pipeline)
	handlers.SetupChallengeRoutes(app, db, workflow)
	handlers.SetupUserRoutes(app, db, pipeline.Ledger, pipeline.Badges, pipeline.Rewards)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Notification outbox worker running (every 10s)")
	log.Println("✅ Challenge window sweep running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
