package main

import (
	"fmt"
	"time"

	"github.com/yashrajoria/shopflow/services/common/config"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds all environment variables for the order-service.
type Config struct {
	config.Common
	Port        string `env:"PORT" envDefault:"9090"`
	MongoDB     string `env:"MONGO_DB" envDefault:"order-service"`
	Store       string `env:"ORDER_STORE" envDefault:"mongo"`
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=orders port=5432 sslmode=disable"`

	MaxDeliveryAttempts int           `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`
	RetryBackoff        time.Duration `env:"RETRY_BACKOFF" envDefault:"1s"`
	DedupEnabled        bool          `env:"ORDER_DEDUP_ENABLED" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Common.Validate(); err != nil {
		return err
	}
	if c.Store != StoreMongo && c.Store != StorePostgres {
		return fmt.Errorf("ORDER_STORE must be %q or %q, got %q", StoreMongo, StorePostgres, c.Store)
	}
	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("MAX_DELIVERY_ATTEMPTS must be at least 1")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("RETRY_BACKOFF must not be negative")
	}
	return nil
}

// applySecrets picks the order-service keys out of the shared secret.
func (c *Config) applySecrets(values map[string]string) {
	if dsn := values["POSTGRES_DSN"]; dsn != "" {
		c.PostgresDSN = dsn
	}
}
