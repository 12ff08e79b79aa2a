package services

import (
	"context"
	"time"

	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/events"
	"go.uber.org/zap"
)

// NotificationListener consumes order-created notifications from PRODUCT and
// logs them. Messages it cannot decode are parked on PRODUCT.dead.
type NotificationListener struct {
	ch         broker.Channel
	log        *zap.Logger
	retryDelay time.Duration
}

func NewNotificationListener(ch broker.Channel, log *zap.Logger) *NotificationListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotificationListener{ch: ch, log: log.Named("notifications"), retryDelay: time.Second}
}

// Run blocks until ctx is cancelled.
func (l *NotificationListener) Run(ctx context.Context) {
	broker.RunConsumer(ctx, l.ch, broker.QueueProduct, l.retryDelay, l.log, l.HandleDelivery)
}

func (l *NotificationListener) HandleDelivery(ctx context.Context, d *broker.Delivery) {
	evt, err := events.DecodeOrderCreated(d.Body)
	if err != nil {
		l.log.Warn("Malformed order notification, parking it", zap.String("delivery_id", d.ID), zap.Error(err))
		if perr := l.ch.Publish(ctx, broker.DeadLetter(broker.QueueProduct), d.Body); perr != nil {
			l.log.Error("Failed to park notification, requeueing", zap.Error(perr))
			_ = d.Nack(ctx, true)
			return
		}
		_ = d.Ack(ctx)
		return
	}

	l.log.Info("Order created",
		zap.String("order_id", evt.NewOrder.ID),
		zap.String("user", evt.NewOrder.User),
		zap.Int("products", len(evt.NewOrder.Products)),
		zap.String("total_price", evt.NewOrder.TotalPrice.String()),
	)
	if err := d.Ack(ctx); err != nil {
		l.log.Warn("Failed to ack notification", zap.String("order_id", evt.NewOrder.ID), zap.Error(err))
	}
}
