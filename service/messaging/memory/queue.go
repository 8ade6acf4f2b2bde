package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/lodstream/service/messaging"
)

// ErrProcessed is returned when a message is acknowledged twice.
var ErrProcessed = errors.New("message already processed")

// Config for memory queue implementation
type Config struct {
	// QueueBuffer is the channel capacity
	QueueBuffer int
	// MaxRetries is the number of redeliveries granted to a nacked message
	MaxRetries int
	// RetryDelay is the wait before a nacked message is redelivered
	RetryDelay time.Duration
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		QueueBuffer: 100,
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
	}
}

// Message implements messaging.Message for the in-memory queue
type Message[T any] struct {
	payload  T
	queue    *Queue[T]
	attempts int
	mu       sync.Mutex
	done     bool
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Attempts returns how many times the message has been nacked.
func (m *Message[T]) Attempts() int {
	return m.attempts
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	return m.settle()
}

// Nack schedules redelivery while retries remain; an exhausted message is
// dropped.
func (m *Message[T]) Nack(error) error {
	if err := m.settle(); err != nil {
		return err
	}
	q := m.queue
	if m.attempts >= q.config.MaxRetries {
		return nil
	}
	retry := &Message[T]{payload: m.payload, queue: q, attempts: m.attempts + 1}
	q.retrying.Add(1)
	time.AfterFunc(q.config.RetryDelay, func() {
		q.messages <- retry
		q.retrying.Add(-1)
	})
	return nil
}

func (m *Message[T]) settle() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return ErrProcessed
	}
	m.done = true
	return nil
}

// Queue implements an in-memory messaging.Queue and messaging.Poller
type Queue[T any] struct {
	messages chan *Message[T]
	config   Config
	retrying atomic.Int32
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

// Publish adds a new item to the queue, blocking while the buffer is full
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.messages <- q.newMessage(t):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish enqueues t unless the buffer is full.
func (q *Queue[T]) TryPublish(t *T) bool {
	select {
	case q.messages <- q.newMessage(t):
		return true
	default:
		return false
	}
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryConsume returns the next message without blocking.
func (q *Queue[T]) TryConsume() (messaging.Message[T], bool) {
	select {
	case msg := <-q.messages:
		return msg, true
	default:
		return nil, false
	}
}

// Drain acknowledges every queued message and returns their payloads in order.
func (q *Queue[T]) Drain() []T {
	var ret []T
	for {
		msg, ok := q.TryConsume()
		if !ok {
			return ret
		}
		_ = msg.Ack()
		ret = append(ret, *msg.T())
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// Retrying returns the number of nacked messages waiting for redelivery.
func (q *Queue[T]) Retrying() int {
	return int(q.retrying.Load())
}

// Retries returns the configured number of redeliveries.
func (q *Queue[T]) Retries() int {
	return q.config.MaxRetries
}

func (q *Queue[T]) newMessage(t *T) *Message[T] {
	return &Message[T]{payload: *t, queue: q}
}

var (
	_ messaging.Queue[any]  = (*Queue[any])(nil)
	_ messaging.Poller[any] = (*Queue[any])(nil)
)
