package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"go.uber.org/zap"
)

// AMQP is a RabbitMQ-backed Channel. Publishing goes through one confirm-mode
// channel; each Consume call opens its own channel with the configured QoS.
type AMQP struct {
	uri      string
	prefetch int
	log      *zap.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	pub      *amqp.Channel
	declared map[string]bool
}

// DialAMQP opens a connection and a publisher channel in confirm mode.
func DialAMQP(_ context.Context, uri string, prefetch int, log *zap.Logger) (*AMQP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &AMQP{uri: uri, prefetch: prefetch, log: log, declared: make(map[string]bool)}
	if err := a.reconnectLocked(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AMQP) reconnectLocked() error {
	if a.conn != nil && !a.conn.IsClosed() && a.pub != nil && !a.pub.IsClosed() {
		return nil
	}
	if a.conn == nil || a.conn.IsClosed() {
		conn, err := amqp.Dial(a.uri)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		a.conn = conn
	}
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	a.pub = ch
	a.declared = make(map[string]bool)
	return nil
}

func (a *AMQP) DeclareQueue(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.reconnectLocked(); err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	return a.declareLocked(name)
}

func (a *AMQP) declareLocked(name string) error {
	if a.declared[name] {
		return nil
	}
	if _, err := a.pub.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return apperrors.ErrConnectFailed.Wrap(fmt.Errorf("declare queue %s: %w", name, err))
	}
	a.declared[name] = true
	return nil
}

// Publish declares the queue (publishing to a missing queue through the
// default exchange silently drops the message) and waits for the broker confirm.
func (a *AMQP) Publish(ctx context.Context, queue string, body []byte) error {
	a.mu.Lock()
	if err := a.reconnectLocked(); err != nil {
		a.mu.Unlock()
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	if err := a.declareLocked(queue); err != nil {
		a.mu.Unlock()
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	confirm, err := a.pub.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	a.mu.Unlock()
	if err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	if !ok {
		return apperrors.ErrPublishFailed.Wrap(fmt.Errorf("broker nacked message on %s", queue))
	}
	return nil
}

func (a *AMQP) Consume(ctx context.Context, queue string) (<-chan *Delivery, error) {
	a.mu.Lock()
	if err := a.reconnectLocked(); err != nil {
		a.mu.Unlock()
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}
	ch, err := a.conn.Channel()
	a.mu.Unlock()
	if err != nil {
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}

	if err := ch.Qos(a.prefetch, 0, false); err != nil {
		ch.Close()
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}

	out := make(chan *Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					a.log.Warn("RabbitMQ delivery stream closed", zap.String("queue", queue))
					return
				}
				select {
				case out <- amqpDelivery(queue, m):
				case <-ctx.Done():
					// unacked deliveries are requeued when the channel closes
					return
				}
			}
		}
	}()
	return out, nil
}

func amqpDelivery(queue string, m amqp.Delivery) *Delivery {
	id := m.MessageId
	if id == "" {
		id = strconv.FormatUint(m.DeliveryTag, 10)
	}
	return NewDelivery(id, queue, m.Body, amqpAttempt(m),
		func(context.Context) error { return m.Ack(false) },
		func(_ context.Context, requeue bool) error { return m.Nack(false, requeue) })
}

// amqpAttempt prefers the quorum-queue delivery counter and falls back to the
// redelivered flag for classic queues.
func amqpAttempt(m amqp.Delivery) int {
	switch v := m.Headers["x-delivery-count"].(type) {
	case int64:
		return int(v) + 1
	case int32:
		return int(v) + 1
	case int:
		return v + 1
	}
	if m.Redelivered {
		return 2
	}
	return 1
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pub != nil {
		a.pub.Close()
	}
	if a.conn != nil && !a.conn.IsClosed() {
		return a.conn.Close()
	}
	return nil
}
