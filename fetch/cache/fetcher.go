// Package cache decorates a fetch.Fetcher with a window store so repeated
// reads of the same LOD window skip the network.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/viant/lodstream/fetch"
)

// Stats counts cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// Fetcher serves windows from a Store and falls back to an upstream fetcher.
type Fetcher struct {
	upstream fetch.Fetcher
	store    Store
	logger   zerolog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// New wraps upstream with store.
func New(upstream fetch.Fetcher, store Store, logger zerolog.Logger) *Fetcher {
	return &Fetcher{upstream: upstream, store: store, logger: logger}
}

// Key identifies a window.
func Key(request *fetch.Request) string {
	return fmt.Sprintf("%s:%d:%d", request.Source, request.Offset, request.Size)
}

// Fetch implements fetch.Fetcher. Hits complete before Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, request *fetch.Request, progress fetch.ProgressFunc, done fetch.DoneFunc) {
	key := Key(request)
	data, err := f.store.Get(ctx, key)
	if err == nil {
		f.hits.Add(1)
		if progress != nil {
			progress(1)
		}
		done(&fetch.Result{Data: data})
		return
	}
	if !errors.Is(err, ErrNotFound) {
		f.logger.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}
	f.misses.Add(1)
	f.upstream.Fetch(ctx, request, progress, func(result *fetch.Result) {
		if result.Err == nil {
			if err := f.store.Set(ctx, key, result.Data); err != nil {
				f.logger.Warn().Err(err).Str("key", key).Msg("cache store failed")
			}
		}
		done(result)
	})
}

// Stats returns the lookup counters.
func (f *Fetcher) Stats() Stats {
	return Stats{Hits: f.hits.Load(), Misses: f.misses.Load()}
}
