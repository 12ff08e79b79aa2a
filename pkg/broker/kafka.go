package broker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"go.uber.org/zap"
)

const kafkaAttemptHeader = "x-attempt"

// Kafka is a Channel over Kafka topics, one topic per queue. Offsets are
// committed on ack; a nack with requeue re-appends the message to the topic
// with an incremented attempt header and then commits the original.
// Deliveries are handed out one at a time so commits stay in offset order.
type Kafka struct {
	brokers []string
	groupID string
	log     *zap.Logger
	writer  *kafka.Writer
	dialer  *kafka.Dialer

	mu       sync.Mutex
	declared map[string]bool
}

// DialKafka checks that a broker is reachable and prepares a shared writer.
func DialKafka(ctx context.Context, brokers []string, groupID string, log *zap.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if groupID == "" {
		groupID = "shopflow"
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}
	conn.Close()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	return &Kafka{
		brokers:  brokers,
		groupID:  groupID,
		log:      log,
		writer:   w,
		dialer:   dialer,
		declared: make(map[string]bool),
	}, nil
}

// DeclareQueue creates the topic through the cluster controller.
func (k *Kafka) DeclareQueue(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.declared[name] {
		return nil
	}

	conn, err := k.dialer.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	cconn, err := k.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: name, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return apperrors.ErrConnectFailed.Wrap(fmt.Errorf("create topic %s: %w", name, err))
	}
	k.declared[name] = true
	return nil
}

func (k *Kafka) Publish(ctx context.Context, queue string, body []byte) error {
	if err := k.DeclareQueue(ctx, queue); err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	return k.write(ctx, queue, []byte(uuid.NewString()), body, 1)
}

func (k *Kafka) write(ctx context.Context, topic string, key, body []byte, attempt int) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: body,
		Headers: []kafka.Header{
			{Key: kafkaAttemptHeader, Value: []byte(strconv.Itoa(attempt))},
		},
	})
	if err != nil {
		return apperrors.ErrPublishFailed.Wrap(fmt.Errorf("failed to write message: %w", err))
	}
	return nil
}

func (k *Kafka) Consume(ctx context.Context, queue string) (<-chan *Delivery, error) {
	if err := k.DeclareQueue(ctx, queue); err != nil {
		return nil, err
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		Topic:       queue,
		GroupID:     k.groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		Dialer:      k.dialer,
		StartOffset: kafka.FirstOffset,
	})

	out := make(chan *Delivery)
	go func() {
		defer close(out)
		defer r.Close()
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					k.log.Warn("Kafka fetch failed", zap.String("topic", queue), zap.Error(err))
				}
				return
			}

			settled := make(chan struct{})
			d := NewDelivery(string(m.Key), queue, m.Value, kafkaAttempt(m),
				func(ctx context.Context) error {
					defer close(settled)
					return r.CommitMessages(ctx, m)
				},
				func(ctx context.Context, requeue bool) error {
					defer close(settled)
					if requeue {
						if err := k.write(ctx, queue, m.Key, m.Value, kafkaAttempt(m)+1); err != nil {
							return err
						}
					}
					return r.CommitMessages(ctx, m)
				})

			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
			select {
			case <-settled:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func kafkaAttempt(m kafka.Message) int {
	for _, h := range m.Headers {
		if h.Key == kafkaAttemptHeader {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
