// Package memory provides an in-memory fetch.Fetcher. In immediate mode every
// request completes before Fetch returns; in deferred mode requests queue up
// until the caller settles them, which makes in-flight states observable.
package memory

import (
	"context"
	"sync"

	"github.com/viant/lodstream/fetch"
)

// Option configures a Fetcher.
type Option func(f *Fetcher)

// WithDeferred queues requests until Flush or an explicit Call settlement.
func WithDeferred() Option {
	return func(f *Fetcher) { f.deferred = true }
}

// WithObject registers data under source.
func WithObject(source string, data []byte) Option {
	return func(f *Fetcher) { f.objects[source] = data }
}

// Fetcher serves windows from byte slices kept in memory.
type Fetcher struct {
	mux      sync.Mutex
	objects  map[string][]byte
	failures map[string]error
	deferred bool
	pending  []*Call
	history  []fetch.Request
}

// New creates a fetcher.
func New(options ...Option) *Fetcher {
	ret := &Fetcher{objects: map[string][]byte{}, failures: map[string]error{}}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Put registers data under source.
func (f *Fetcher) Put(source string, data []byte) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.objects[source] = data
}

// FailWith makes every later request for source fail with err; nil clears it.
func (f *Fetcher) FailWith(source string, err error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err == nil {
		delete(f.failures, source)
		return
	}
	f.failures[source] = err
}

// Fetch implements fetch.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, request *fetch.Request, progress fetch.ProgressFunc, done fetch.DoneFunc) {
	call := &Call{Request: *request, ctx: ctx, progress: progress, done: done, fetcher: f}
	f.mux.Lock()
	f.history = append(f.history, *request)
	if f.deferred {
		f.pending = append(f.pending, call)
		f.mux.Unlock()
		return
	}
	f.mux.Unlock()
	call.Complete()
}

// Pending returns the unsettled deferred calls in issue order.
func (f *Fetcher) Pending() []*Call {
	f.mux.Lock()
	defer f.mux.Unlock()
	ret := make([]*Call, 0, len(f.pending))
	for _, call := range f.pending {
		if !call.settled {
			ret = append(ret, call)
		}
	}
	return ret
}

// Flush completes every pending call and returns how many were settled.
func (f *Fetcher) Flush() int {
	calls := f.Pending()
	for _, call := range calls {
		call.Complete()
	}
	return len(calls)
}

// History returns every request received so far.
func (f *Fetcher) History() []fetch.Request {
	f.mux.Lock()
	defer f.mux.Unlock()
	ret := make([]fetch.Request, len(f.history))
	copy(ret, f.history)
	return ret
}

func (f *Fetcher) resolve(request *fetch.Request) ([]byte, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	if err, ok := f.failures[request.Source]; ok {
		return nil, err
	}
	data, ok := f.objects[request.Source]
	if !ok {
		return nil, fetch.ErrNotFound
	}
	return fetch.Slice(data, request.Offset, request.Size)
}

func (f *Fetcher) settle(call *Call) bool {
	f.mux.Lock()
	defer f.mux.Unlock()
	if call.settled {
		return false
	}
	call.settled = true
	for i, candidate := range f.pending {
		if candidate == call {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	return true
}

// Call is one deferred request.
type Call struct {
	Request  fetch.Request
	ctx      context.Context
	progress fetch.ProgressFunc
	done     fetch.DoneFunc
	fetcher  *Fetcher
	settled  bool
}

// Progress reports a fetched ratio for the call.
func (c *Call) Progress(rate float32) {
	if c.progress != nil {
		c.progress(rate)
	}
}

// Complete resolves the call from the fetcher's objects. A cancelled call
// completes with the context error.
func (c *Call) Complete() {
	if !c.fetcher.settle(c) {
		return
	}
	if err := c.ctx.Err(); err != nil {
		c.done(&fetch.Result{Err: err})
		return
	}
	data, err := c.fetcher.resolve(&c.Request)
	if err == nil {
		c.Progress(1)
	}
	c.done(&fetch.Result{Data: data, Err: err})
}

// Fail settles the call with err.
func (c *Call) Fail(err error) {
	if !c.fetcher.settle(c) {
		return
	}
	c.done(&fetch.Result{Err: err})
}
