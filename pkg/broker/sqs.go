package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"go.uber.org/zap"
)

// SQS is a Channel backed by Amazon SQS (or LocalStack). A nack with requeue
// resets the visibility timeout so the message is received again.
type SQS struct {
	q        *awspkg.SQSQueue
	prefetch int
	log      *zap.Logger

	mu   sync.Mutex
	urls map[string]string
}

// DialSQS loads the AWS config and checks connectivity by resolving the ORDER queue.
func DialSQS(ctx context.Context, prefetch int, log *zap.Logger) (*SQS, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	s := &SQS{q: awspkg.NewSQSQueue(cfg), prefetch: prefetch, log: log, urls: make(map[string]string)}
	if _, err := s.url(ctx, QueueOrder); err != nil {
		return nil, err
	}
	return s, nil
}

// sqsName maps a queue name to the SQS alphabet, which has no dots.
func sqsName(queue string) string {
	return strings.ReplaceAll(queue, ".", "-")
}

func (s *SQS) url(ctx context.Context, queue string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.urls[queue]; ok {
		return u, nil
	}
	u, err := s.q.EnsureQueue(ctx, sqsName(queue))
	if err != nil {
		return "", err
	}
	s.urls[queue] = u
	return u, nil
}

func (s *SQS) DeclareQueue(ctx context.Context, name string) error {
	if _, err := s.url(ctx, name); err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	return nil
}

func (s *SQS) Publish(ctx context.Context, queue string, body []byte) error {
	u, err := s.url(ctx, queue)
	if err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	if err := s.q.Send(ctx, u, body); err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	return nil
}

func (s *SQS) Consume(ctx context.Context, queue string) (<-chan *Delivery, error) {
	u, err := s.url(ctx, queue)
	if err != nil {
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}

	out := make(chan *Delivery)
	slots := make(chan struct{}, s.prefetch)
	go func() {
		defer close(out)
		for {
			free := s.prefetch - len(slots)
			if free < 1 {
				select {
				case slots <- struct{}{}:
					<-slots
				case <-ctx.Done():
					return
				}
				continue
			}

			msgs, err := s.q.Receive(ctx, u, int32(free))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.log.Error("SQS receive failed", zap.String("queue", queue), zap.Error(err))
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			for _, m := range msgs {
				slots <- struct{}{}
				release := func() { <-slots }
				handle := m.ReceiptHandle
				d := NewDelivery(m.ID, queue, m.Body, m.ReceiveCount,
					func(ctx context.Context) error {
						defer release()
						return s.q.Delete(ctx, u, handle)
					},
					func(ctx context.Context, requeue bool) error {
						defer release()
						if requeue {
							return s.q.Release(ctx, u, handle)
						}
						return s.q.Delete(ctx, u, handle)
					})
				select {
				case out <- d:
				case <-ctx.Done():
					// the visibility timeout returns undelivered messages
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *SQS) Close() error { return nil }
