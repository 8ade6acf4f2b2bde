package scheduler

import (
	"errors"
	"fmt"
)

// Config holds scheduler parameters.
type Config struct {
	// MaxNumActiveParsers bounds the number of parsers with a request in flight.
	MaxNumActiveParsers int `json:"maxNumActiveParsers" yaml:"maxNumActiveParsers" toml:"maxNumActiveParsers"`
	// Priority is the job priority reported while there is work to do.
	Priority float32 `json:"priority" yaml:"priority" toml:"priority"`
	// UseJobBasedParsing parses fetched windows as jobs on the job manager.
	UseJobBasedParsing bool `json:"useJobBasedParsing" yaml:"useJobBasedParsing" toml:"useJobBasedParsing"`
	// RequestAbortingEnabled lets the scheduler abort requests that lost relevance.
	RequestAbortingEnabled bool `json:"requestAbortingEnabled" yaml:"requestAbortingEnabled" toml:"requestAbortingEnabled"`
	// AbortableRequestProgressThreshold is the fetched ratio past which a
	// request is only aborted when its parser no longer wants it.
	AbortableRequestProgressThreshold float32 `json:"abortableRequestProgressThreshold" yaml:"abortableRequestProgressThreshold" toml:"abortableRequestProgressThreshold"`
	// MarshalResults queues fetch callbacks for delivery on the stepping thread.
	MarshalResults bool `json:"marshalResults" yaml:"marshalResults" toml:"marshalResults"`
}

// DefaultConfig returns the default scheduler parameters.
func DefaultConfig() Config {
	return Config{
		MaxNumActiveParsers:               20,
		Priority:                          10,
		RequestAbortingEnabled:            true,
		AbortableRequestProgressThreshold: 0.5,
		MarshalResults:                    true,
	}
}

// Validate reports every invalid parameter.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxNumActiveParsers <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidMaxActive, c.MaxNumActiveParsers))
	}
	if c.Priority < 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidPriority, c.Priority))
	}
	if c.AbortableRequestProgressThreshold < 0 || c.AbortableRequestProgressThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidThreshold, c.AbortableRequestProgressThreshold))
	}
	return errors.Join(errs...)
}
