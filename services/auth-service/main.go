package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/yashrajoria/shopflow/services/auth-service/controllers"
	"github.com/yashrajoria/shopflow/services/auth-service/repository"
	"github.com/yashrajoria/shopflow/services/auth-service/routes"
	"github.com/yashrajoria/shopflow/services/auth-service/services"
	"github.com/yashrajoria/shopflow/services/common/auth"
	"github.com/yashrajoria/shopflow/services/common/database"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/common/server"
	"go.uber.org/zap"
)

const serviceName = "auth-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs, _ := server.Setup(ctx, serviceName, &cfg.Common)
	logger := obs.Log
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// --- 1. Storage ---
	mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongo.Close(context.Background()); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	userRepo := repository.NewUserRepository(mongo.DB)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure user indexes", zap.Error(err))
	}

	// --- 2. Services & controllers ---
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authService := services.NewAuthService(userRepo, tokens, services.NewBcryptVerifier(cfg.BcryptCost), obs.Metrics)
	authController := controllers.NewAuthController(authService)

	// --- 3. HTTP ---
	r := server.NewRouter(serviceName, obs, cfg.AllowedOrigins)
	routes.RegisterRoutes(r, authController, middleware.RateLimitMiddleware(ctx), middleware.RequireAuth(tokens))

	if err := server.Run(ctx, ":"+cfg.Port, r, logger); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}
	logger.Info("Auth Service stopped gracefully")
}
