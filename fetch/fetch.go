// Package fetch defines the range-read contract the scheduler issues LOD
// windows through.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the source does not exist.
	ErrNotFound = errors.New("fetch: source not found")
	// ErrOutOfRange is returned when a window extends past the source end.
	ErrOutOfRange = errors.New("fetch: range out of bounds")
)

// Request is a byte window of a source.
type Request struct {
	Source string
	Offset int64
	Size   int64
}

func (r *Request) String() string {
	return fmt.Sprintf("%s[%d:+%d]", r.Source, r.Offset, r.Size)
}

// Result carries either the window bytes or an error.
type Result struct {
	Data []byte
	Err  error
}

// ProgressFunc receives the fetched ratio in [0, 1].
type ProgressFunc func(rate float32)

// DoneFunc receives the outcome.
type DoneFunc func(result *Result)

// Fetcher reads byte windows. Fetch must call done exactly once, possibly
// before returning and possibly from another goroutine. progress may be nil.
// Cancelling ctx asks the fetcher to give up; done is still called.
type Fetcher interface {
	Fetch(ctx context.Context, request *Request, progress ProgressFunc, done DoneFunc)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, request *Request, progress ProgressFunc, done DoneFunc)

func (f FetcherFunc) Fetch(ctx context.Context, request *Request, progress ProgressFunc, done DoneFunc) {
	f(ctx, request, progress, done)
}

// Slice returns the window of data described by offset and size.
func Slice(data []byte, offset, size int64) ([]byte, error) {
	if offset < 0 || size < 0 || offset+size > int64(len(data)) {
		return nil, fmt.Errorf("%w: [%d:+%d] of %d bytes", ErrOutOfRange, offset, size, len(data))
	}
	return data[offset : offset+size], nil
}

// Get is a blocking helper issuing request through fetcher.
func Get(ctx context.Context, fetcher Fetcher, request *Request) ([]byte, error) {
	ch := make(chan *Result, 1)
	fetcher.Fetch(ctx, request, nil, func(result *Result) { ch <- result })
	select {
	case result := <-ch:
		return result.Data, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
