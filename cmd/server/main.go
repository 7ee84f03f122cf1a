package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"camp-ops-backend/internal/config"
	"camp-ops-backend/internal/handlers"
	"camp-ops-backend/internal/realtime"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/internal/services"
	"camp-ops-backend/internal/utils"
	"camp-ops-backend/pkg/database"
	"camp-ops-backend/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		logger.Get().WithError(err).Fatal("config error")
	}

	logger.Configure(cfg.LogLevel, cfg.Env)
	log := logger.Get()
	if envErr != nil {
		log.WithError(envErr).Debug(".env file not loaded")
	}

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection error")
	}

	// Run migrations
	if err := repositories.AutoMigrate(db, cfg.RealtimeChannel); err != nil {
		log.WithError(err).Fatal("migration error")
	}

	repo := repositories.NewRepository(db)
	broker := realtime.NewBroker(log)
	codec := utils.NewTokenCodec(cfg.TokenSecret)

	// Initialize services
	notifier := services.NewReconciliationNotifier(repo.ActionItemRepo, log)
	console := services.NewAttendanceConsole(repo.AttendanceRepo, repo.RegistrationRepo, notifier, cfg.Location(), log)
	authSvc := services.NewAuthService(repo.UserRepo, cfg)
	registrationSvc := services.NewRegistrationService(repo.RegistrationRepo, notifier, console, broker, codec, log)
	scanner := services.NewTokenCheckInService(codec, repo.RegistrationRepo, repo.AttendanceRepo, console, log)
	regSync := services.NewRegistrationSync(broker, console, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.RealtimeEnabled {
		regSync.Start()
		if cfg.DBDriver == "postgres" {
			bridge := realtime.NewPGBridge(cfg.PostgresDSN(), cfg.RealtimeChannel, broker, log)
			go func() {
				if err := bridge.Run(ctx); err != nil {
					log.WithError(err).Error("realtime bridge stopped")
				}
			}()
		}
	}

	handler := handlers.NewHandler(authSvc, registrationSvc, console, scanner, notifier, cfg, log)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Camp Operations API",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// Global middlewares
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: log.Writer()}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Register routes
	api := app.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.WithField("addr", addr).Info("server starting")
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	regSync.Stop()
	cancel()
	if err := app.Shutdown(); err != nil {
		log.WithError(err).Fatal("server shutdown error")
	}
	log.Info("server stopped gracefully")
}
