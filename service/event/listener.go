package event

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Listener consumes events from a publisher on its own goroutine.
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(*Event[T])
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewListener[T any](publisher *Publisher[T], handler func(*Event[T]), logger zerolog.Logger) *Listener[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Stop cancels the consume loop and waits for the in-progress handler to return.
func (l *Listener[T]) Stop() {
	l.cancel()
	l.wg.Wait()
}

func (l *Listener[T]) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			event, err := l.publisher.Consume(l.ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				l.logger.Warn().Err(err).Msg("event consume failed")
				continue
			}
			if event != nil {
				l.handler(event)
			}
		}
	}()
}
