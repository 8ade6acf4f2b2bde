package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/progress"
)

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithConfig replaces the configuration.
func WithConfig(config Config) Option {
	return func(s *Scheduler) { s.config = config }
}

// WithManager sets the job manager used for job based parsing.
func WithManager(manager *job.Manager) Option {
	return func(s *Scheduler) { s.manager = manager }
}

// WithProgress shares a counter tracker with the scheduler.
func WithProgress(tracker *progress.Progress) Option {
	return func(s *Scheduler) { s.progress = tracker }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}
