package event

import (
	"context"

	"github.com/viant/lodstream/internal/clock"
	"github.com/viant/lodstream/service/messaging"
)

// Publisher delivers events through a queue so that host listeners run off the
// thread driving the scheduler.
type Publisher[T any] struct {
	queue messaging.Queue[Event[T]]
}

func NewPublisher[T any](queue messaging.Queue[Event[T]]) *Publisher[T] {
	return &Publisher[T]{
		queue: queue,
	}
}

func (p *Publisher[T]) Publish(ctx context.Context, event *Event[T]) error {
	event.CreatedAt = clock.Now()
	return p.queue.Publish(ctx, event)
}

// TryPublish delivers event without blocking when the queue supports polling;
// it reports whether the event was queued.
func (p *Publisher[T]) TryPublish(event *Event[T]) bool {
	event.CreatedAt = clock.Now()
	if poller, ok := p.queue.(messaging.Poller[Event[T]]); ok {
		return poller.TryPublish(event)
	}
	return p.queue.Publish(context.Background(), event) == nil
}

func (p *Publisher[T]) Consume(ctx context.Context) (*Event[T], error) {
	msg, err := p.queue.Consume(ctx)
	if err != nil || msg == nil {
		return nil, err
	}
	if err = msg.Ack(); err != nil {
		return nil, err
	}
	return msg.T(), nil
}
