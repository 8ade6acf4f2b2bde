package lodstream

import (
	"context"
	"time"
)

// Runtime drives a Service at its loading framerate.
type Runtime struct {
	service *Service
}

// Run ticks the service once per frame until ctx ends or streaming settles.
// It returns nil once settled and the context error otherwise.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()
	for {
		r.service.Tick()
		if r.service.Settled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunFor runs for at most timeout.
func (r *Runtime) RunFor(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Run(ctx)
}

func (r *Runtime) interval() time.Duration {
	if budget := r.service.manager.Config().Budget(); budget > 0 {
		return budget
	}
	return time.Second / 60
}
