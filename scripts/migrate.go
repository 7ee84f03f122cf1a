package main

import (
	"context"
	"os"

	"camp-ops-backend/internal/config"
	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/internal/utils"
	"camp-ops-backend/pkg/database"
	"camp-ops-backend/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		logger.Get().WithError(err).Fatal("config error")
	}
	logger.Configure(cfg.LogLevel, cfg.Env)
	log := logger.Get()

	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection error")
	}

	if err := repositories.AutoMigrate(db, cfg.RealtimeChannel); err != nil {
		log.WithError(err).Fatal("migration error")
	}
	log.Info("database migrations completed")

	if err := createDefaultAdmin(context.Background(), repositories.NewUserRepository(db)); err != nil {
		log.WithError(err).Fatal("failed to create default admin")
	}
}

// createDefaultAdmin seeds the first admin account from ADMIN_EMAIL/ADMIN_PASSWORD
// when no admin exists yet.
func createDefaultAdmin(ctx context.Context, users repositories.UserRepository) error {
	log := logger.Get()

	n, err := users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("admin user already exists")
		return nil
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("no admin user and ADMIN_EMAIL/ADMIN_PASSWORD not set; skipping seed")
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{Email: email, Password: hashed, Role: models.RoleAdmin}
	if err := users.CreateUser(ctx, admin); err != nil {
		return err
	}

	log.WithField("email", email).Info("default admin user created")
	return nil
}
