package lodstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/lodstream/fetch/s3"
	"github.com/viant/lodstream/fetch/storage"
	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/scheduler"
)

// Config is a serialisable representation of the streaming configuration. It
// can be populated from YAML, JSON or TOML; fields missing from a file keep
// their DefaultConfig values.
type Config struct {
	// LoadingFramerate is the tick frequency in Hz
	LoadingFramerate float64 `json:"loadingFramerate" yaml:"loadingFramerate" toml:"loadingFramerate"`
	// MinStepsPerTick is the number of job steps run per tick regardless of the budget
	MinStepsPerTick int              `json:"minStepsPerTick" yaml:"minStepsPerTick" toml:"minStepsPerTick"`
	Scheduler       scheduler.Config `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Fetch           FetchConfig      `json:"fetch" yaml:"fetch" toml:"fetch"`
	// EventBuffer is the number of notifications kept for a slow consumer
	EventBuffer int `json:"eventBuffer" yaml:"eventBuffer" toml:"eventBuffer"`
}

// FetchConfig configures the default storage fetcher and its range cache.
type FetchConfig struct {
	Workers     int `json:"workers" yaml:"workers" toml:"workers"`
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer" toml:"queueBuffer"`
	ChunkSize   int `json:"chunkSize" yaml:"chunkSize" toml:"chunkSize"`

	// Retries is the number of times a transient read failure is retried
	Retries      int `json:"retries" yaml:"retries" toml:"retries"`
	RetryDelayMs int `json:"retryDelayMs" yaml:"retryDelayMs" toml:"retryDelayMs"`
	// CacheDir enables a persistent range cache stored in the directory
	CacheDir string `json:"cacheDir" yaml:"cacheDir" toml:"cacheDir"`
	// CacheInMemory enables a range cache kept in memory
	CacheInMemory bool `json:"cacheInMemory" yaml:"cacheInMemory" toml:"cacheInMemory"`
	// S3 routes s3:// sources to ranged GetObject calls when a region or secret is set
	S3 s3.Config `json:"s3" yaml:"s3" toml:"s3"`
}

// Cached reports whether a range cache is configured.
func (c FetchConfig) Cached() bool { return c.CacheDir != "" || c.CacheInMemory }

func (c FetchConfig) storage() storage.Config {
	return storage.Config{
		Workers:      c.Workers,
		QueueBuffer:  c.QueueBuffer,
		ChunkSize:    c.ChunkSize,
		Retries:      c.Retries,
		RetryDelayMs: c.RetryDelayMs,
	}
}

// DefaultConfig returns a Config populated with package defaults. Callers may
// modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	jobConfig := job.DefaultConfig()
	storageConfig := storage.DefaultConfig()
	return &Config{
		LoadingFramerate: jobConfig.LoadingFramerate,
		MinStepsPerTick:  jobConfig.MinStepsPerTick,
		Scheduler:        scheduler.DefaultConfig(),
		Fetch: FetchConfig{
			Workers:      storageConfig.Workers,
			QueueBuffer:  storageConfig.QueueBuffer,
			ChunkSize:    storageConfig.ChunkSize,
			Retries:      storageConfig.Retries,
			RetryDelayMs: storageConfig.RetryDelayMs,
		},
		EventBuffer: 256,
	}
}

// Job returns the job manager budget configuration.
func (c *Config) Job() job.Config {
	return job.Config{LoadingFramerate: c.LoadingFramerate, MinStepsPerTick: c.MinStepsPerTick}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.Job().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.Workers <= 0 {
		errs = append(errs, fmt.Errorf("fetch.workers must be > 0, got %d", c.Fetch.Workers))
	}
	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("eventBuffer must be > 0, got %d", c.EventBuffer))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a configuration from any afs supported URL and decodes it
// by extension: .yaml/.yml, .json or .toml.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	if URL == "" {
		return nil, fmt.Errorf("empty config URL")
	}
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", URL, err)
	}
	ret := DefaultConfig()
	switch ext := strings.ToLower(path.Ext(URL)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, ret)
	case ".json":
		err = json.Unmarshal(data, ret)
	case ".toml":
		err = toml.Unmarshal(data, ret)
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
