// Package storage serves fetch requests from any viant/afs backed location
// (file://, mem://, s3://, gs:// ...) through a pool of workers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"

	"github.com/viant/lodstream/fetch"
	"github.com/viant/lodstream/service/messaging/memory"
)

// ErrClosed is reported for requests issued after Shutdown.
var ErrClosed = errors.New("storage fetcher: closed")

// Config represents fetcher worker configuration
type Config struct {
	// Workers is the number of concurrent range reads
	Workers int `json:"workers" yaml:"workers" toml:"workers"`
	// QueueBuffer is the number of requests waiting for a worker
	QueueBuffer int `json:"queueBuffer" yaml:"queueBuffer" toml:"queueBuffer"`
	// ChunkSize is the read granularity used for progress reports
	ChunkSize int `json:"chunkSize" yaml:"chunkSize" toml:"chunkSize"`
	// Retries is the number of times a transient read failure is retried
	Retries int `json:"retries" yaml:"retries" toml:"retries"`
	// RetryDelayMs is the wait before a failed read is retried
	RetryDelayMs int `json:"retryDelayMs" yaml:"retryDelayMs" toml:"retryDelayMs"`
}

// DefaultConfig returns the default worker configuration
func DefaultConfig() Config {
	return Config{Workers: 4, QueueBuffer: 256, ChunkSize: 32 * 1024, Retries: 2, RetryDelayMs: 50}
}

type task struct {
	ctx      context.Context
	request  fetch.Request
	progress fetch.ProgressFunc
	done     fetch.DoneFunc
}

// Service reads byte windows with afs.
type Service struct {
	config   Config
	fs       afs.Service
	logger   zerolog.Logger
	queue    *memory.Queue[task]
	mux      sync.RWMutex
	closed   bool
	workers  []*worker
	workerWg sync.WaitGroup
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// Option configures a Service.
type Option func(s *Service)

// WithConfig sets the worker configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithFS sets the afs service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a storage fetcher; call Start before issuing requests.
func New(options ...Option) (*Service, error) {
	s := &Service{config: DefaultConfig(), logger: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	if s.config.Workers <= 0 {
		return nil, fmt.Errorf("storage fetcher: workers must be > 0, got %d", s.config.Workers)
	}
	if s.config.Retries < 0 || s.config.RetryDelayMs < 0 {
		return nil, fmt.Errorf("storage fetcher: invalid retry policy %d x %dms", s.config.Retries, s.config.RetryDelayMs)
	}
	if s.config.ChunkSize <= 0 {
		s.config.ChunkSize = DefaultConfig().ChunkSize
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	queueConfig := memory.DefaultConfig()
	queueConfig.QueueBuffer = s.config.QueueBuffer
	queueConfig.MaxRetries = s.config.Retries
	queueConfig.RetryDelay = time.Duration(s.config.RetryDelayMs) * time.Millisecond
	s.queue = memory.NewQueue[task](queueConfig)
	return s, nil
}

// Start launches the workers; they stop when ctx ends or on Shutdown.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.config.Workers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
}

// Shutdown stops the workers, waits for in-progress reads and fails every
// request still queued with ErrClosed.
func (s *Service) Shutdown() {
	s.mux.Lock()
	s.closed = true
	s.mux.Unlock()
	for _, w := range s.workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
	for {
		for _, t := range s.queue.Drain() {
			t.done(&fetch.Result{Err: ErrClosed})
		}
		if s.queue.Retrying() == 0 && s.queue.Size() == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Fetch implements fetch.Fetcher.
func (s *Service) Fetch(ctx context.Context, request *fetch.Request, progress fetch.ProgressFunc, done fetch.DoneFunc) {
	s.mux.RLock()
	if s.closed {
		s.mux.RUnlock()
		done(&fetch.Result{Err: ErrClosed})
		return
	}
	err := s.queue.Publish(ctx, &task{ctx: ctx, request: *request, progress: progress, done: done})
	s.mux.RUnlock()
	if err != nil {
		done(&fetch.Result{Err: err})
	}
}

func (w *worker) run() {
	defer w.service.workerWg.Done()
	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			continue
		}
		t := msg.T()
		data, err := w.service.read(t.ctx, &t.request, t.progress)
		if err != nil {
			attempt := msg.(*memory.Message[task]).Attempts()
			if w.service.retryable(t.ctx, err) && attempt < w.service.queue.Retries() {
				w.service.logger.Debug().Err(err).Int("worker", w.id).Int("attempt", attempt+1).Str("request", t.request.String()).Msg("range read failed, retrying")
				_ = msg.Nack(err)
				continue
			}
			w.service.logger.Debug().Err(err).Int("worker", w.id).Str("request", t.request.String()).Msg("range read failed")
		}
		_ = msg.Ack()
		t.done(&fetch.Result{Data: data, Err: err})
	}
}

// retryable reports whether err may clear on another attempt. Missing
// objects, short ranges and cancelled requests are final.
func (s *Service) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || s.isClosed() {
		return false
	}
	switch {
	case errors.Is(err, fetch.ErrNotFound), errors.Is(err, fetch.ErrOutOfRange),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (s *Service) isClosed() bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.closed
}

func (s *Service) read(ctx context.Context, request *fetch.Request, progress fetch.ProgressFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reader, err := s.fs.OpenURL(ctx, request.Source)
	if err != nil {
		if exists, _ := s.fs.Exists(ctx, request.Source); !exists {
			return nil, fmt.Errorf("%w: %s", fetch.ErrNotFound, request.Source)
		}
		return nil, err
	}
	defer reader.Close()
	if err = skip(reader, request.Offset); err != nil {
		return nil, fmt.Errorf("%s: %w", request, err)
	}
	// the buffer grows as data arrives; request.Size is not trusted
	chunk := make([]byte, min(int64(s.config.ChunkSize), max(request.Size, 1)))
	ret := make([]byte, 0, len(chunk))
	for int64(len(ret)) < request.Size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		want := min(int64(len(chunk)), request.Size-int64(len(ret)))
		n, err := io.ReadFull(reader, chunk[:want])
		ret = append(ret, chunk[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %s", fetch.ErrOutOfRange, request)
			}
			return nil, err
		}
		if progress != nil {
			progress(float32(len(ret)) / float32(request.Size))
		}
	}
	return ret, nil
}

func skip(reader io.Reader, offset int64) error {
	if offset == 0 {
		return nil
	}
	if seeker, ok := reader.(io.Seeker); ok {
		_, err := seeker.Seek(offset, io.SeekStart)
		return err
	}
	n, err := io.CopyN(io.Discard, reader, offset)
	if n < offset {
		return fetch.ErrOutOfRange
	}
	return err
}
