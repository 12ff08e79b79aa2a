package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/auth"
	"github.com/yashrajoria/shopflow/services/common/database"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"github.com/yashrajoria/shopflow/services/common/server"
	"github.com/yashrajoria/shopflow/services/product-service/controllers"
	"github.com/yashrajoria/shopflow/services/product-service/repository"
	"github.com/yashrajoria/shopflow/services/product-service/routes"
	"github.com/yashrajoria/shopflow/services/product-service/services"
	"go.uber.org/zap"
)

const serviceName = "product-service"

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

	productRepo := repository.NewProductRepository(mongo.DB)
	if err := productRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure product indexes", zap.Error(err))
	}

	var cache services.ProductCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = controllers.NewCacheManager(redisClient, cfg.ProductCacheTTL)
		}
	}

	// --- 2. Broker ---
	ch, err := broker.Dial(ctx, cfg.BrokerConfig(serviceName, logger))
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer ch.Close()

	for _, q := range []string{broker.QueueOrder, broker.QueueProduct, broker.DeadLetter(broker.QueueProduct)} {
		if err := ch.DeclareQueue(ctx, q); err != nil {
			logger.Fatal("Failed to declare queue", zap.String("queue", q), zap.Error(err))
		}
	}

	var wg sync.WaitGroup
	if cfg.NotificationsEnabled {
		listener := services.NewNotificationListener(ch, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx)
		}()
	}

	// --- 3. Services & controllers ---
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	productService := services.NewProductService(productRepo, ch, cache, obs.Metrics)
	productController := controllers.NewProductController(productService)

	// --- 4. HTTP ---
	r := server.NewRouter(serviceName, obs, cfg.AllowedOrigins)
	routes.RegisterProductRoutes(r, productController, middleware.RequireAuth(tokens))

	if err := server.Run(ctx, ":"+cfg.Port, r, logger); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}
	stop()
	wg.Wait()
	logger.Info("Product Service stopped gracefully")
}
