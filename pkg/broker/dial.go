package broker

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverAMQP   = "amqp"
	DriverSQS    = "sqs"
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// Config selects and configures a broker driver.
type Config struct {
	Driver         string
	RabbitURI      string
	KafkaBrokers   []string
	KafkaGroupID   string
	Prefetch       int
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Dial connects to the configured broker, retrying with exponential backoff
// until ConnectTimeout elapses. It then fails with ErrConnectFailed.
func Dial(ctx context.Context, cfg Config) (Channel, error) {
	if cfg.Prefetch < 1 {
		cfg.Prefetch = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	connect, err := connector(cfg, log)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(cfg.ConnectTimeout)
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		ch, err := connect(ctx)
		if err == nil {
			log.Info("Connected to broker", zap.String("driver", cfg.Driver), zap.Int("attempt", attempt))
			return ch, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, apperrors.ErrConnectFailed.Wrap(fmt.Errorf("%s after %d attempts: %w", cfg.Driver, attempt, err))
		}
		log.Warn("Broker not reachable, retrying",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		wait := backoff
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.ErrConnectFailed.Wrap(ctx.Err())
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func connector(cfg Config, log *zap.Logger) (func(context.Context) (Channel, error), error) {
	switch cfg.Driver {
	case DriverAMQP, "":
		return func(ctx context.Context) (Channel, error) {
			return DialAMQP(ctx, cfg.RabbitURI, cfg.Prefetch, log)
		}, nil
	case DriverSQS:
		return func(ctx context.Context) (Channel, error) {
			return DialSQS(ctx, cfg.Prefetch, log)
		}, nil
	case DriverKafka:
		return func(ctx context.Context) (Channel, error) {
			return DialKafka(ctx, cfg.KafkaBrokers, cfg.KafkaGroupID, log)
		}, nil
	case DriverMemory:
		return func(context.Context) (Channel, error) {
			return NewMemory(cfg.Prefetch), nil
		}, nil
	default:
		return nil, apperrors.ErrConnectFailed.Wrap(fmt.Errorf("unknown broker driver %q", cfg.Driver))
	}
}
