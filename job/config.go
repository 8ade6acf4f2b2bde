package job

import (
	"errors"
	"fmt"
	"time"
)

// Config controls the per-tick work budget.
type Config struct {
	// LoadingFramerate is the tick frequency in Hz; the budget is 1/LoadingFramerate
	LoadingFramerate float64 `json:"loadingFramerate" yaml:"loadingFramerate" toml:"loadingFramerate"`
	// MinStepsPerTick is the guaranteed progress floor
	MinStepsPerTick int `json:"minStepsPerTick" yaml:"minStepsPerTick" toml:"minStepsPerTick"`
}

// DefaultConfig returns a 60 Hz budget with a single step floor.
func DefaultConfig() Config {
	return Config{LoadingFramerate: 60, MinStepsPerTick: 1}
}

// Budget returns the per-tick time budget.
func (c Config) Budget() time.Duration {
	if c.LoadingFramerate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.LoadingFramerate)
}

// Validate returns aggregated error describing invalid settings or nil.
func (c Config) Validate() error {
	var errs []error
	if c.LoadingFramerate <= 0 {
		errs = append(errs, fmt.Errorf("loadingFramerate must be > 0, got %v", c.LoadingFramerate))
	}
	if c.MinStepsPerTick < 1 {
		errs = append(errs, fmt.Errorf("minStepsPerTick must be >= 1, got %v", c.MinStepsPerTick))
	}
	return errors.Join(errs...)
}
