//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
	"github.com/hugh/chefenplace/pkg/config"
	"github.com/hugh/chefenplace/pkg/util"
	"github.com/joho/godotenv"
)

// Creates the platform super admin. Super admins belong to no restaurant.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@chefenplace.local"
	}
	if password == "" {
		password = "change-me-now"
	}
	if name == "" {
		name = "Platform Admin"
	}

	users := auth.NewUserStore(db, auth.NewHasher(cfg.Security.BcryptCost, cfg.Security.HashTimeout()))
	admin := &models.User{
		Email:         email,
		Password:      password,
		Name:          name,
		Role:          permission.RoleSuperAdmin,
		Status:        models.UserStatusActive,
		IsActive:      true,
		EmailVerified: true,
	}

	if err := users.Create(context.Background(), admin); err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", admin.Email)
	fmt.Printf("Role: %s\n", admin.Role)
}
