package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/yashrajoria/shopflow/services/api-gateway/proxy"
	"github.com/yashrajoria/shopflow/services/api-gateway/routes"
	"github.com/yashrajoria/shopflow/services/common/auth"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/common/server"
	"go.uber.org/zap"
)

const serviceName = "api-gateway"

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

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	r := server.NewRouter(serviceName, obs, cfg.AllowedOrigins)
	routes.RegisterAllRoutes(r, proxy.NewForwarder(cfg.ForwardTimeout), routes.Upstreams{
		Auth:    cfg.AuthServiceURL,
		Product: cfg.ProductServiceURL,
		Order:   cfg.OrderServiceURL,
	}, middleware.RequireAuth(tokens))

	logger.Info("Forwarding",
		zap.String("auth", cfg.AuthServiceURL),
		zap.String("product", cfg.ProductServiceURL),
		zap.String("order", cfg.OrderServiceURL),
	)
	if err := server.Run(ctx, ":"+cfg.Port, r, logger); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}
	logger.Info("API Gateway stopped gracefully")
}
