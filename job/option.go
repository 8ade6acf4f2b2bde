package job

import (
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Manager.
type Option func(m *Manager)

// WithConfig sets the budget configuration.
func WithConfig(config Config) Option {
	return func(m *Manager) { m.config = config }
}

// WithClock overrides the time source used to measure the budget.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}
