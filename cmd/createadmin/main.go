// Package main creates or promotes the ADMIN account for a carpool database.
// Registration never grants ADMIN, so this is how the first one is made.
//
//	ADMIN_EMAIL=ops@example.com ADMIN_PASSWORD=... createadmin --name Ops
//
// Running it again for the same email is safe.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/carpool/backend/internal/config"
	"github.com/pkordes/carpool/backend/internal/repo"
	"github.com/pkordes/carpool/backend/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.LoadAdmin(os.Args[1:])
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(2)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Tokens are never issued here.
	users := service.NewUserService(repo.NewUserRepo(pool), nil)
	u, created, err := users.EnsureAdmin(ctx, service.NewUser{
		Name:     cfg.Name,
		Email:    cfg.Email,
		Password: cfg.Password,
	})
	if err != nil {
		logger.Error("failed to ensure admin", "email", cfg.Email, "error", err)
		pool.Close()
		os.Exit(1)
	}
	logger.Info("admin ready", "user_id", u.ID, "email", u.Email, "created", created)
}
