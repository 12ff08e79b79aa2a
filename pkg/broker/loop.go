package broker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Handler processes one delivery and is responsible for settling it.
type Handler func(ctx context.Context, d *Delivery)

// RunConsumer consumes queue until ctx is cancelled, calling handle for each
// delivery in order. When the delivery stream closes (connection loss, broker
// restart) it consumes again after retryDelay.
func RunConsumer(ctx context.Context, ch Channel, queue string, retryDelay time.Duration, log *zap.Logger, handle Handler) {
	if log == nil {
		log = zap.NewNop()
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	for ctx.Err() == nil {
		deliveries, err := ch.Consume(ctx, queue)
		if err != nil {
			log.Error("Failed to start consuming", zap.String("queue", queue), zap.Error(err))
		} else {
			log.Info("Consuming queue", zap.String("queue", queue))
			for d := range deliveries {
				handle(ctx, d)
			}
			if ctx.Err() != nil {
				break
			}
			log.Warn("Delivery stream closed, consuming again", zap.String("queue", queue))
		}

		select {
		case <-ctx.Done():
		case <-time.After(retryDelay):
		}
	}
	log.Info("Consumer stopped", zap.String("queue", queue))
}
