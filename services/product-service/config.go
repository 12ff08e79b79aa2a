package main

import (
	"time"

	"github.com/yashrajoria/shopflow/services/common/config"
)

// Config holds all environment variables for the product-service.
type Config struct {
	config.Common
	Port            string        `env:"PORT" envDefault:"8080"`
	MongoDB         string        `env:"MONGO_DB" envDefault:"product-service"`
	ProductCacheTTL time.Duration `env:"PRODUCT_CACHE_TTL" envDefault:"10m"`
	// Consume PRODUCT notifications and log them. Off leaves the queue to
	// other consumers.
	NotificationsEnabled bool `env:"ORDER_NOTIFICATIONS_ENABLED" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
