package main

import (
	"github.com/yashrajoria/shopflow/services/common/config"
)

// Config holds all environment variables for the auth-service.
type Config struct {
	config.Common
	Port       string `env:"PORT" envDefault:"7020"`
	MongoDB    string `env:"MONGO_DB" envDefault:"auth-service"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`
}

// LoadConfig loads environment variables into Config and validates them.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
