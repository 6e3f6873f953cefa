package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"typeduel/internal/config"
	"typeduel/internal/logging"
	"typeduel/internal/model"
	"typeduel/internal/repository"
	"typeduel/internal/service"
)

var demoUsers = []model.User{
	{Username: "alice", Email: "alice@example.com", Rating: 200},
	{Username: "bob", Email: "bob@example.com", Rating: 220},
	{Username: "carol", Email: "carol@example.com", Rating: 640, XP: 900},
}

// seedNamespace keeps demo user ids stable across runs
var seedNamespace = uuid.MustParse("6f1c2a9e-4b7d-4e1a-9c3f-2d5b8a7e6c41")

func main() {
	if err := run(); err != nil {
		slog.Error("seed_failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	if _, err := logging.NewLogger(logCfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := repository.OpenStore(ctx, repository.StoreOptions{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		MongoURI:    cfg.MongoURI,
		MongoDB:     cfg.MongoDB,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	auth := service.NewAuthService(cfg.JWTSecret, cfg.CookieName, store)

	for _, demo := range demoUsers {
		user := demo
		user.ID = uuid.NewSHA1(seedNamespace, []byte(user.Username)).String()

		existing, err := store.GetUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", user.Username, err)
		}
		if existing == nil {
			if err := store.CreateUser(ctx, &user); err != nil {
				return fmt.Errorf("create %s: %w", user.Username, err)
			}
			slog.Info("user_created", slog.String("user", user.ID), slog.String("username", user.Username))
		} else {
			user = *existing
		}

		token, err := auth.IssueToken(&user, 30*24*time.Hour)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", user.Username, err)
		}
		fmt.Printf("%-6s rating=%-4d ws://localhost:%s/v1/ws?token=%s\n", user.Username, user.Rating, cfg.Port, token)
	}
	return nil
}
