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
	"github.com/yashrajoria/shopflow/services/order-service/controllers"
	"github.com/yashrajoria/shopflow/services/order-service/delivery"
	"github.com/yashrajoria/shopflow/services/order-service/repository"
	"github.com/yashrajoria/shopflow/services/order-service/routes"
	"github.com/yashrajoria/shopflow/services/order-service/services"
	"go.uber.org/zap"
)

const serviceName = "order-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs, secrets := server.Setup(ctx, serviceName, &cfg.Common)
	logger := obs.Log
	defer logger.Sync()

	cfg.applySecrets(secrets)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// --- 1. Storage ---
	var orderRepo repository.OrderRepository
	switch cfg.Store {
	case StorePostgres:
		db, err := database.ConnectPostgres(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer database.ClosePostgres(db)

		gormRepo := repository.NewGormOrderRepository(db)
		if err := gormRepo.Migrate(); err != nil {
			logger.Fatal("Failed to migrate order tables", zap.Error(err))
		}
		orderRepo = gormRepo
	default:
		mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := mongo.Close(context.Background()); err != nil {
				logger.Error("Failed to disconnect MongoDB", zap.Error(err))
			}
		}()

		mongoRepo := repository.NewMongoOrderRepository(mongo.DB)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Fatal("Failed to ensure order indexes", zap.Error(err))
		}
		orderRepo = mongoRepo
	}
	logger.Info("Order store ready", zap.String("store", cfg.Store))

	var tracker delivery.Tracker = delivery.NewMemoryTracker()
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, tracking deliveries in process", zap.Error(err))
		} else {
			defer redisClient.Close()
			tracker = delivery.NewRedisTracker(redisClient)
		}
	}

	// --- 2. Broker ---
	ch, err := broker.Dial(ctx, cfg.BrokerConfig(serviceName, logger))
	if err != nil {
		logger.Fatal("Failed to connect to broker", zap.Error(err))
	}
	defer ch.Close()

	for _, q := range []string{broker.QueueOrder, broker.QueueProduct, broker.DeadLetter(broker.QueueOrder)} {
		if err := ch.DeclareQueue(ctx, q); err != nil {
			logger.Fatal("Failed to declare queue", zap.String("queue", q), zap.Error(err))
		}
	}

	// --- 3. Services & consumer ---
	orderService := services.NewOrderService(orderRepo)
	consumer := services.NewIntentConsumer(ch, orderService, tracker, services.ConsumerConfig{
		MaxAttempts:  cfg.MaxDeliveryAttempts,
		RetryBackoff: cfg.RetryBackoff,
		DedupEnabled: cfg.DedupEnabled,
	}, logger, obs.Metrics)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	// --- 4. HTTP ---
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	r := server.NewRouter(serviceName, obs, cfg.AllowedOrigins)
	routes.RegisterOrderRoutes(r, controllers.NewOrderController(orderService), middleware.RequireAuth(tokens))

	if err := server.Run(ctx, ":"+cfg.Port, r, logger); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}
	stop()
	wg.Wait()
	logger.Info("Order Service stopped gracefully")
}
