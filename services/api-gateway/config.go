package main

import (
	"time"

	"github.com/yashrajoria/shopflow/services/common/config"
)

// Config holds all environment variables for the api-gateway.
type Config struct {
	config.Common
	Port              string        `env:"PORT" envDefault:"8000"`
	AuthServiceURL    string        `env:"AUTH_SERVICE_URL" envDefault:"http://localhost:7020"`
	ProductServiceURL string        `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8080"`
	OrderServiceURL   string        `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:9090"`
	ForwardTimeout    time.Duration `env:"FORWARD_TIMEOUT" envDefault:"25s"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
