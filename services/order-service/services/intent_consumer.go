package services

import (
	"context"
	"encoding/json"
	"time"

	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	"github.com/yashrajoria/shopflow/pkg/broker"
	"github.com/yashrajoria/shopflow/services/common/events"
	"github.com/yashrajoria/shopflow/services/order-service/delivery"
	"github.com/yashrajoria/shopflow/services/order-service/models"
	"go.uber.org/zap"
)

// OutcomeKind says how a delivery ended.
type OutcomeKind string

const (
	OutcomeCreated   OutcomeKind = "created"
	OutcomeRetry     OutcomeKind = "retry"
	OutcomeParked    OutcomeKind = "parked"
	OutcomeDuplicate OutcomeKind = "duplicate"
)

// Outcome is reported once per handled delivery.
type Outcome struct {
	Kind       OutcomeKind
	DeliveryID string
	Order      *models.Order
	Err        error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, intent events.PurchaseIntent) (*models.Order, error)
}

type ConsumerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	DedupEnabled bool
}

// IntentConsumer turns purchase intents from ORDER into stored orders and
// announces each one on PRODUCT.
type IntentConsumer struct {
	ch       broker.Channel
	orders   OrderCreator
	tracker  delivery.Tracker
	cfg      ConsumerConfig
	log      *zap.Logger
	metrics  awspkg.Recorder
	outcomes chan<- Outcome
}

func NewIntentConsumer(ch broker.Channel, orders OrderCreator, tracker delivery.Tracker, cfg ConsumerConfig, log *zap.Logger, metrics awspkg.Recorder) *IntentConsumer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if tracker == nil {
		tracker = delivery.NewMemoryTracker()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IntentConsumer{ch: ch, orders: orders, tracker: tracker, cfg: cfg, log: log.Named("intents"), metrics: metrics}
}

// WithOutcomes reports every handled delivery on out. Sends block, so out
// must be drained.
func (c *IntentConsumer) WithOutcomes(out chan<- Outcome) *IntentConsumer {
	c.outcomes = out
	return c
}

// Run blocks until ctx is cancelled.
func (c *IntentConsumer) Run(ctx context.Context) {
	broker.RunConsumer(ctx, c.ch, broker.QueueOrder, time.Second, c.log, c.HandleDelivery)
}

func (c *IntentConsumer) HandleDelivery(ctx context.Context, d *broker.Delivery) {
	log := c.log.With(zap.String("delivery_id", d.ID), zap.Int("attempt", d.Attempt))

	intent, err := events.DecodePurchaseIntent(d.Body)
	if err != nil {
		log.Warn("Malformed purchase intent", zap.Error(err))
		c.park(ctx, d, log)
		c.report(Outcome{Kind: OutcomeParked, DeliveryID: d.ID, Err: err})
		return
	}
	if intent.IntentID != "" {
		log = log.With(zap.String("intent_id", intent.IntentID))
	}

	if c.cfg.DedupEnabled && intent.IntentID != "" {
		seen, err := c.tracker.Seen(ctx, intent.IntentID)
		if err != nil {
			log.Warn("Dedup lookup failed, processing anyway", zap.Error(err))
		} else if seen {
			log.Info("Purchase intent already processed")
			c.ack(ctx, d, log)
			c.report(Outcome{Kind: OutcomeDuplicate, DeliveryID: d.ID})
			return
		}
	}

	order, err := c.orders.CreateOrder(ctx, intent)
	if err != nil {
		c.handleWriteFailure(ctx, d, err, log)
		return
	}
	_ = c.tracker.Reset(ctx, attemptKey(d))
	if c.cfg.DedupEnabled && intent.IntentID != "" {
		if err := c.tracker.Mark(ctx, intent.IntentID); err != nil {
			log.Warn("Failed to mark purchase intent", zap.Error(err))
		}
	}

	c.ack(ctx, d, log)
	log.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user", order.User),
		zap.String("total_price", order.TotalPrice.String()),
	)
	c.record(awspkg.MetricOrdersCreated)

	c.notify(ctx, order, log)
	c.report(Outcome{Kind: OutcomeCreated, DeliveryID: d.ID, Order: order})
}

// handleWriteFailure requeues the delivery after a backoff until it has failed
// MaxAttempts times, then parks it. A write cut short by shutdown is requeued
// without counting as an attempt.
func (c *IntentConsumer) handleWriteFailure(ctx context.Context, d *broker.Delivery, cause error, log *zap.Logger) {
	if ctx.Err() != nil {
		log.Info("Shutting down, requeueing purchase intent", zap.Error(cause))
		if err := d.Nack(context.WithoutCancel(ctx), true); err != nil {
			log.Error("Failed to requeue purchase intent", zap.Error(err))
		}
		c.report(Outcome{Kind: OutcomeRetry, DeliveryID: d.ID, Err: cause})
		return
	}
	c.record(awspkg.MetricOrdersFailed)

	attempts, err := c.tracker.Incr(ctx, attemptKey(d))
	if err != nil {
		log.Warn("Failed to count attempt, using broker count", zap.Error(err))
	}
	if d.Attempt > attempts {
		attempts = d.Attempt
	}

	if attempts >= c.cfg.MaxAttempts {
		log.Error("Giving up on purchase intent", zap.Int("attempts", attempts), zap.Error(cause))
		c.park(ctx, d, log)
		_ = c.tracker.Reset(ctx, attemptKey(d))
		c.report(Outcome{Kind: OutcomeParked, DeliveryID: d.ID, Err: cause})
		return
	}

	wait := c.cfg.RetryBackoff * time.Duration(attempts)
	log.Warn("Failed to store order, retrying", zap.Int("attempts", attempts), zap.Duration("backoff", wait), zap.Error(cause))
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
	if err := d.Nack(context.WithoutCancel(ctx), true); err != nil {
		log.Error("Failed to requeue purchase intent", zap.Error(err))
	}
	c.report(Outcome{Kind: OutcomeRetry, DeliveryID: d.ID, Err: cause})
}

// park copies the body to ORDER.dead and acks the original. If the copy
// fails the delivery is requeued instead so nothing is dropped.
func (c *IntentConsumer) park(ctx context.Context, d *broker.Delivery, log *zap.Logger) {
	if err := c.ch.Publish(ctx, broker.DeadLetter(broker.QueueOrder), d.Body); err != nil {
		log.Error("Failed to park message, requeueing", zap.Error(err))
		_ = d.Nack(context.WithoutCancel(ctx), true)
		return
	}
	c.record(awspkg.MetricMessagesParked)
	c.ack(ctx, d, log)
}

func (c *IntentConsumer) ack(ctx context.Context, d *broker.Delivery, log *zap.Logger) {
	if err := d.Ack(context.WithoutCancel(ctx)); err != nil {
		log.Error("Failed to ack delivery", zap.Error(err))
	}
}

// notify announces the order. A failure loses the notification but keeps the order.
func (c *IntentConsumer) notify(ctx context.Context, order *models.Order, log *zap.Logger) {
	body, err := json.Marshal(events.OrderCreated{NewOrder: *order})
	if err == nil {
		err = c.ch.Publish(ctx, broker.QueueProduct, body)
	}
	if err != nil {
		log.Error("Failed to publish order notification", zap.String("order_id", order.ID), zap.Error(err))
		c.record(awspkg.MetricNotificationsFailed)
	}
}

func (c *IntentConsumer) report(o Outcome) {
	if c.outcomes != nil {
		c.outcomes <- o
	}
}

func (c *IntentConsumer) record(metric string) {
	if c.metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.metrics.RecordCount(ctx, metric, map[string]string{"Service": "order-service"})
	}()
}

func attemptKey(d *broker.Delivery) string {
	return d.Queue + ":" + d.ID
}
