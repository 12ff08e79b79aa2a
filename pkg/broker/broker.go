// Package broker is a small abstraction over durable work queues. Services
// publish to and consume from named queues without knowing which broker
// backs them.
package broker

import (
	"context"
	"errors"
	"sync/atomic"
)

// Queue names shared by the services.
const (
	QueueOrder   = "ORDER"
	QueueProduct = "PRODUCT"
)

// DeadLetter returns the name of the parking queue for queue.
func DeadLetter(queue string) string {
	return queue + ".dead"
}

// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
var ErrAlreadySettled = errors.New("delivery already settled")

// Channel is a connection to a broker. Implementations are safe for
// concurrent use by publishers and consumers.
type Channel interface {
	// DeclareQueue creates a durable queue if it does not exist.
	DeclareQueue(ctx context.Context, name string) error
	// Publish stores body on queue. It never waits for a consumer.
	Publish(ctx context.Context, queue string, body []byte) error
	// Consume streams deliveries until ctx is cancelled or the connection is
	// lost, then closes the returned channel. It may be called again afterwards.
	Consume(ctx context.Context, queue string) (<-chan *Delivery, error)
	Close() error
}

type (
	AckFunc  func(ctx context.Context) error
	NackFunc func(ctx context.Context, requeue bool) error
)

// Delivery is one received message. Exactly one of Ack or Nack takes effect.
type Delivery struct {
	ID      string
	Queue   string
	Body    []byte
	Attempt int

	ack     AckFunc
	nack    NackFunc
	settled atomic.Bool
}

// NewDelivery builds a delivery whose settlement is handled by ack and nack.
func NewDelivery(id, queue string, body []byte, attempt int, ack AckFunc, nack NackFunc) *Delivery {
	if attempt < 1 {
		attempt = 1
	}
	return &Delivery{ID: id, Queue: queue, Body: body, Attempt: attempt, ack: ack, nack: nack}
}

// Ack confirms the message was handled and removes it from the queue.
func (d *Delivery) Ack(ctx context.Context) error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Nack rejects the message. With requeue the broker redelivers it later,
// otherwise it is discarded.
func (d *Delivery) Nack(ctx context.Context, requeue bool) error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	if d.nack == nil {
		return nil
	}
	return d.nack(ctx, requeue)
}

// Settled reports whether Ack or Nack has been called.
func (d *Delivery) Settled() bool {
	return d.settled.Load()
}
