package messaging

import (
	"context"
)

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Poller is implemented by queues that can be drained without blocking, which
// is how results are marshalled onto a cooperative driving thread.
type Poller[T any] interface {
	// TryPublish adds a message when there is room and reports whether it did
	TryPublish(t *T) bool

	// TryConsume returns the next message or false when the queue is empty
	TryConsume() (Message[T], bool)

	// Size returns the number of queued messages
	Size() int
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
