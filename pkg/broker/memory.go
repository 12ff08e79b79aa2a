package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
)

var errMemoryClosed = errors.New("memory broker closed")

// Memory is an in-process broker. Queues are FIFO backlogs; a message handed
// to a consumer stays in flight until it is acked, nacked, or the consumer
// stops, in which case it goes back to the front of its queue.
type Memory struct {
	prefetch int

	mu     sync.Mutex
	queues map[string]*memQueue
	done   chan struct{}
	closed bool
}

type memMessage struct {
	id      string
	body    []byte
	attempt int
}

type memQueue struct {
	mu      sync.Mutex
	backlog []*memMessage
	// wake is closed and replaced whenever the backlog grows.
	wake chan struct{}
}

// NewMemory creates an in-process broker allowing prefetch unacked messages per consumer.
func NewMemory(prefetch int) *Memory {
	if prefetch < 1 {
		prefetch = 1
	}
	return &Memory{
		prefetch: prefetch,
		queues:   make(map[string]*memQueue),
		done:     make(chan struct{}),
	}
}

func (m *Memory) queue(name string) (*memQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errMemoryClosed
	}
	q, ok := m.queues[name]
	if !ok {
		q = &memQueue{wake: make(chan struct{})}
		m.queues[name] = q
	}
	return q, nil
}

func (m *Memory) DeclareQueue(_ context.Context, name string) error {
	if _, err := m.queue(name); err != nil {
		return apperrors.ErrConnectFailed.Wrap(err)
	}
	return nil
}

func (m *Memory) Publish(_ context.Context, queue string, body []byte) error {
	q, err := m.queue(queue)
	if err != nil {
		return apperrors.ErrPublishFailed.Wrap(err)
	}
	cp := append([]byte(nil), body...)
	q.push(&memMessage{id: uuid.NewString(), body: cp, attempt: 1}, false)
	return nil
}

// Depth returns the number of messages waiting on queue, excluding in-flight ones.
func (m *Memory) Depth(queue string) int {
	q, err := m.queue(queue)
	if err != nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Messages returns a copy of the bodies waiting on queue, oldest first.
func (m *Memory) Messages(queue string) [][]byte {
	q, err := m.queue(queue)
	if err != nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, 0, len(q.backlog))
	for _, msg := range q.backlog {
		out = append(out, append([]byte(nil), msg.body...))
	}
	return out
}

func (m *Memory) Consume(ctx context.Context, queue string) (<-chan *Delivery, error) {
	q, err := m.queue(queue)
	if err != nil {
		return nil, apperrors.ErrConnectFailed.Wrap(err)
	}

	c := &memConsumer{
		queue:    queue,
		q:        q,
		inflight: make(map[string]*memMessage),
		slots:    make(chan struct{}, m.prefetch),
		out:      make(chan *Delivery),
	}
	go c.run(ctx, m.done)
	return c.out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (q *memQueue) push(msg *memMessage, front bool) {
	q.mu.Lock()
	if front {
		q.backlog = append([]*memMessage{msg}, q.backlog...)
	} else {
		q.backlog = append(q.backlog, msg)
	}
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

func (q *memQueue) pushFront(msgs []*memMessage) {
	if len(msgs) == 0 {
		return
	}
	q.mu.Lock()
	q.backlog = append(append([]*memMessage(nil), msgs...), q.backlog...)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

// next blocks until a message is available or stop fires.
func (q *memQueue) next(ctx context.Context, done <-chan struct{}) *memMessage {
	for {
		q.mu.Lock()
		if len(q.backlog) > 0 {
			msg := q.backlog[0]
			q.backlog = q.backlog[1:]
			q.mu.Unlock()
			return msg
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		}
	}
}

type memConsumer struct {
	queue string
	q     *memQueue

	mu       sync.Mutex
	inflight map[string]*memMessage
	sent     []string // in-flight ids, oldest first

	slots chan struct{}
	out   chan *Delivery
}

func (c *memConsumer) run(ctx context.Context, done <-chan struct{}) {
	defer close(c.out)
	defer c.stop()

	for {
		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			return
		case <-done:
			return
		}

		msg := c.q.next(ctx, done)
		if msg == nil {
			return
		}

		c.mu.Lock()
		c.inflight[msg.id] = msg
		c.sent = append(c.sent, msg.id)
		c.mu.Unlock()

		d := NewDelivery(msg.id, c.queue, msg.body, msg.attempt,
			func(context.Context) error {
				c.settle(msg.id)
				return nil
			},
			func(_ context.Context, requeue bool) error {
				if m := c.settle(msg.id); m != nil && requeue {
					m.attempt++
					c.q.push(m, true)
				}
				return nil
			})

		select {
		case c.out <- d:
		case <-ctx.Done():
			c.unsend(msg)
			return
		case <-done:
			c.unsend(msg)
			return
		}
	}
}

// unsend returns a message that never reached the consumer without counting an attempt.
func (c *memConsumer) unsend(msg *memMessage) {
	if c.settle(msg.id) != nil {
		c.q.push(msg, true)
	}
}

// settle removes an in-flight message and frees its prefetch slot. It returns
// nil when the consumer already stopped and requeued the message.
func (c *memConsumer) settle(id string) *memMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.inflight[id]
	if !ok {
		return nil
	}
	delete(c.inflight, id)
	for i, sent := range c.sent {
		if sent == id {
			c.sent = append(c.sent[:i], c.sent[i+1:]...)
			break
		}
	}
	<-c.slots
	return msg
}

// stop puts every unsettled message back at the front of the queue in the
// order it was delivered.
func (c *memConsumer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	unsettled := make([]*memMessage, 0, len(c.sent))
	for _, id := range c.sent {
		msg := c.inflight[id]
		delete(c.inflight, id)
		msg.attempt++
		unsettled = append(unsettled, msg)
	}
	c.sent = nil
	c.q.pushFront(unsettled)
}
