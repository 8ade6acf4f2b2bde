package lodstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/viant/lodstream/fetch"
	"github.com/viant/lodstream/fetch/cache"
	"github.com/viant/lodstream/fetch/s3"
	"github.com/viant/lodstream/fetch/storage"
	"github.com/viant/lodstream/internal/clock"
	"github.com/viant/lodstream/internal/idgen"
	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/metrics"
	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/progress"
	"github.com/viant/lodstream/scheduler"
	"github.com/viant/lodstream/service/dao"
	"github.com/viant/lodstream/service/dao/store"
	"github.com/viant/lodstream/service/event"
	"github.com/viant/lodstream/service/messaging/memory"
)

// Update is the payload of a streaming notification.
type Update struct {
	CurrentLod int    `json:"currentLod"`
	MaxLod     int    `json:"maxLod"`
	Quantity   int    `json:"quantity,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Service opens streamed assets and drives their scheduler. Except for
// Events, which may be consumed from any goroutine, it is used from the
// thread that ticks it.
type Service struct {
	config    *Config
	logger    zerolog.Logger
	manager   *job.Manager
	scheduler *scheduler.Scheduler
	fetcher   fetch.Fetcher
	formats   map[uint16]formatEntry
	resolver  parser.Resolver
	assets    dao.Service[string, Asset]
	metrics   *metrics.Collector
	events    *event.Publisher[Update]
	runtime   *Runtime

	storage *storage.Service
	cache   cache.Store
	handle  job.Handle
	stalled bool
}

// New creates a service. Without WithFetcher it reads through an afs storage
// fetcher, routing s3:// sources to S3 when configured, optionally behind a
// range cache. Shutdown releases them.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config:  DefaultConfig(),
		logger:  zerolog.Nop(),
		formats: defaultFormats(),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureBaseSetup(); err != nil {
		s.Shutdown()
		return nil, err
	}
	s.runtime = &Runtime{service: s}
	return s, nil
}

func (s *Service) ensureBaseSetup() error {
	var err error
	if s.manager == nil {
		if s.manager, err = job.New(job.WithConfig(s.config.Job()), job.WithLogger(s.logger)); err != nil {
			return err
		}
	}
	if s.fetcher == nil {
		if !s.config.Scheduler.MarshalResults {
			return ErrUnmarshalledFetcher
		}
		if s.storage, err = storage.New(storage.WithConfig(s.config.Fetch.storage()), storage.WithLogger(s.logger)); err != nil {
			return err
		}
		s.storage.Start(context.Background())
		s.fetcher = s.storage
		if s3Config := s.config.Fetch.S3; s3Config.Enabled() {
			client, err := s3.NewClient(context.Background(), s3Config)
			if err != nil {
				return err
			}
			objects := s3.New(client, s3.WithBucket(s3Config.Bucket), s3.WithLogger(s.logger))
			s.fetcher = fetch.NewRouter(s.storage).Route("s3", objects)
		}
	}
	if s.config.Fetch.Cached() {
		if s.cache, err = cache.NewBadger(cache.BadgerOptions{
			Dir:      s.config.Fetch.CacheDir,
			InMemory: s.config.Fetch.CacheDir == "",
			Logger:   s.logger,
		}); err != nil {
			return fmt.Errorf("failed to open range cache: %w", err)
		}
		s.fetcher = cache.New(s.fetcher, s.cache, s.logger)
	}
	if s.assets == nil {
		s.assets = store.NewMemoryStore[string, Asset](
			func(a *Asset) string { return a.ID },
			store.WithMatcher[string, Asset](matchAsset),
			store.WithOrder[string, Asset](func(a, b *Asset) bool {
				if !a.OpenedAt.Equal(b.OpenedAt) {
					return a.OpenedAt.Before(b.OpenedAt)
				}
				return a.ID < b.ID
			}),
		)
	}
	s.events = event.NewPublisher[Update](memory.NewQueue[event.Event[Update]](memory.Config{QueueBuffer: s.config.EventBuffer}))
	if s.scheduler, err = scheduler.New(s.fetcher,
		scheduler.WithConfig(s.config.Scheduler),
		scheduler.WithManager(s.manager),
		scheduler.WithProgress(progress.New(nil)),
		scheduler.WithLogger(s.logger),
	); err != nil {
		return err
	}
	s.scheduler.Active.Connect(func(*scheduler.Scheduler) {
		s.logger.Debug().Msg("streaming active")
		s.publish(&event.Context{EventType: event.TypeActive}, Update{})
	})
	s.scheduler.Inactive.Connect(func(*scheduler.Scheduler) {
		s.logger.Debug().Msg("streaming inactive")
		s.publish(&event.Context{EventType: event.TypeInactive}, Update{})
	})
	return nil
}

func (s *Service) Config() *Config                 { return s.config }
func (s *Service) Manager() *job.Manager           { return s.manager }
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }
func (s *Service) Runtime() *Runtime               { return s.runtime }

// Events returns the notification publisher.
func (s *Service) Events() *event.Publisher[Update] { return s.events }

// Open reads the container header at source, creates a parser for the
// registered format and schedules it. Parser options apply after the service
// defaults (id, source, resolver, logger, priority 1).
func (s *Service) Open(ctx context.Context, source string, options ...parser.Option) (*Asset, error) {
	head, err := fetch.Get(ctx, s.fetcher, &fetch.Request{Source: source, Size: parser.HeaderSize})
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", source, err)
	}
	header, err := parser.ReadHeader(head)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	entry, ok := s.formats[header.Extension]
	if !ok {
		return nil, fmt.Errorf("%w: %#04x in %s", ErrUnknownFormat, header.Extension, source)
	}
	formatHeader, err := fetch.Get(ctx, s.fetcher, &fetch.Request{Source: source, Offset: parser.HeaderSize, Size: int64(header.FormatHeaderSize)})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header of %s: %w", entry.name, source, err)
	}
	asset := &Asset{
		ID:        idgen.New(),
		Source:    source,
		Extension: header.Extension,
		Format:    entry.name,
		OpenedAt:  clock.Now(),
	}
	parserOptions := []parser.Option{
		parser.WithID(asset.ID),
		parser.WithSource(source),
		parser.WithLogger(s.logger),
		parser.WithPriority(1),
	}
	if s.resolver != nil {
		parserOptions = append(parserOptions, parser.WithResolver(s.resolver))
	}
	asset.Parser = parser.New(entry.factory(), append(parserOptions, options...)...)
	s.relay(asset)
	asset.Parser.BeginHeader()
	data := make([]byte, 0, len(head)+len(formatHeader))
	data = append(append(data, head...), formatHeader...)
	if err = asset.Parser.Parse(data); err != nil {
		return nil, err
	}
	asset.Name = asset.Parser.Metadata().Name
	if err = s.assets.Save(ctx, asset); err != nil {
		asset.Parser.Dispose()
		return nil, err
	}
	if !asset.Parser.Complete() {
		if err = s.scheduler.AddParser(asset.Parser); err != nil {
			asset.Parser.Dispose()
			_ = s.assets.Delete(ctx, asset.ID)
			return nil, err
		}
		s.schedule()
	}
	s.logger.Debug().Str("asset", asset.ID).Str("source", source).Str("format", entry.name).Int("maxLod", asset.Parser.MaxLod()).Msg("asset opened")
	return asset, nil
}

// relay republishes the parser signals of asset as notifications.
func (s *Service) relay(asset *Asset) {
	p := asset.Parser
	notify := func(eventType event.Type, update Update) {
		update.CurrentLod = p.CurrentLod()
		update.MaxLod = p.MaxLod()
		s.publish(&event.Context{AssetID: asset.ID, Source: asset.Source, EventType: eventType, Lod: p.CurrentLod()}, update)
	}
	p.Ready.Connect(func(*parser.Parser) { notify(event.TypeReady, Update{}) })
	p.LodRequestComplete.Connect(func(*parser.Parser) { notify(event.TypeLod, Update{Quantity: p.LastQuantity()}) })
	p.Completed.Connect(func(*parser.Parser) { notify(event.TypeCompleted, Update{}) })
	p.Error.Connect(func(err *parser.Error) {
		asset.Err = err
		s.logger.Warn().Err(err).Str("asset", asset.ID).Str("source", asset.Source).Msg("asset failed")
		notify(event.TypeError, Update{Error: err.Error()})
	})
}

func (s *Service) publish(ctx *event.Context, update Update) {
	if !s.events.TryPublish(event.NewEvent(ctx, update)) {
		s.logger.Debug().Str("event", string(ctx.EventType)).Str("asset", ctx.AssetID).Msg("event dropped")
	}
}

// schedule pushes the scheduler onto the manager unless it is already queued;
// the manager retires it once no parser is left.
func (s *Service) schedule() {
	if !s.manager.Contains(s.handle) {
		s.handle = s.manager.Push(s.scheduler)
	}
}

// Close stops streaming the asset and disposes its parser.
func (s *Service) Close(ctx context.Context, id string) error {
	asset, err := s.assets.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("asset %s: %w", id, err)
	}
	s.scheduler.RemoveParser(asset.Parser)
	asset.Parser.Dispose()
	return s.assets.Delete(ctx, id)
}

// Asset returns an opened asset.
func (s *Service) Asset(ctx context.Context, id string) (*Asset, error) {
	return s.assets.Load(ctx, id)
}

// Assets lists opened assets in opening order, filtered by Status, Format or
// Source parameters.
func (s *Service) Assets(ctx context.Context, parameters ...*dao.Parameter) ([]*Asset, error) {
	return s.assets.List(ctx, parameters...)
}

// Tick runs one frame of jobs and records its outcome.
func (s *Service) Tick() job.TickStats {
	s.manager.Update()
	stats := s.manager.End()
	health := s.scheduler.Health()
	if health.Stalled != s.stalled {
		s.stalled = health.Stalled
		if s.stalled {
			s.logger.Warn().Int("pending", health.Pending).Msg("streaming stalled")
			s.publish(&event.Context{EventType: event.TypeStalled}, Update{})
		} else {
			s.logger.Info().Int("runnable", health.Runnable).Int("active", health.Active).Msg("streaming resumed")
		}
	}
	if s.metrics != nil {
		s.metrics.Observe(stats, health, s.scheduler.Stats())
	}
	return stats
}

// Pause stops issuing requests; fetched windows are held until Resume.
func (s *Service) Pause() { s.scheduler.SetPriority(0) }

// Resume restores the configured scheduler priority.
func (s *Service) Resume() {
	s.scheduler.SetPriority(s.config.Scheduler.Priority)
	if !s.scheduler.Complete() {
		s.schedule()
	}
}

// Paused reports whether streaming is paused.
func (s *Service) Paused() bool { return s.scheduler.Paused() }

// Complete reports whether every opened asset finished streaming or failed.
func (s *Service) Complete() bool { return s.scheduler.Complete() }

// Settled reports whether no more progress can be made under the current
// required levels: nothing is scheduled, or nothing is in flight and no
// pending parser has a window to fetch.
func (s *Service) Settled() bool {
	if s.scheduler.Complete() {
		return true
	}
	return s.scheduler.Health().Stalled
}

// Stats returns the streaming counters.
func (s *Service) Stats() progress.Counters { return s.scheduler.Stats() }

// Shutdown releases the default fetcher workers and the range cache.
func (s *Service) Shutdown() error {
	var errs []error
	if s.scheduler != nil {
		s.scheduler.Clear()
	}
	if s.storage != nil {
		s.storage.Shutdown()
		s.storage = nil
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, err)
		}
		s.cache = nil
	}
	return errors.Join(errs...)
}
