package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceConfig struct {
	Common
	Port string `env:"PORT" envDefault:"7020"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg serviceConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "7020", cfg.Port)
	assert.Equal(t, "this_is_secret", cfg.JWTSecret)
	assert.Equal(t, time.Duration(0), cfg.TokenTTL)
	assert.Equal(t, "amqp", cfg.Broker.Driver)
	assert.Equal(t, 1, cfg.Broker.Prefetch)
	assert.Equal(t, 30*time.Second, cfg.Broker.ConnectTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.KafkaBrokers)
	assert.False(t, cfg.CloudWatch.Enabled)
	assert.Empty(t, cfg.RedisURL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("BROKER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("BROKER_PREFETCH", "4")

	var cfg serviceConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenTTL)

	bc := cfg.BrokerConfig("order-service", nil)
	assert.Equal(t, "kafka", bc.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, bc.KafkaBrokers)
	assert.Equal(t, 4, bc.Prefetch)
	assert.Equal(t, "order-service", bc.KafkaGroupID)
}

func TestValidate(t *testing.T) {
	c := Common{JWTSecret: "  "}
	assert.Error(t, c.Validate())

	c = Common{JWTSecret: "k", TokenTTL: -time.Second}
	assert.Error(t, c.Validate())
}

type fakeSecrets struct {
	values map[string]string
	err    error
	asked  string
}

func (f *fakeSecrets) GetSecretJSON(_ context.Context, name string) (map[string]string, error) {
	f.asked = name
	return f.values, f.err
}

func TestApplySecrets(t *testing.T) {
	c := Common{JWTSecret: "local", MongoURI: "mongodb://local", SecretName: "shopflow/config"}
	src := &fakeSecrets{values: map[string]string{
		"JWT_SECRET":   "from-secrets",
		"MONGO_URI":    "",
		"POSTGRES_DSN": "host=db",
	}}

	values, err := c.ApplySecrets(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "shopflow/config", src.asked)
	assert.Equal(t, "from-secrets", c.JWTSecret)
	assert.Equal(t, "mongodb://local", c.MongoURI, "blank secret values are ignored")
	assert.Equal(t, "host=db", values["POSTGRES_DSN"])

	_, err = c.ApplySecrets(context.Background(), &fakeSecrets{err: errors.New("denied")})
	assert.Error(t, err)
}
