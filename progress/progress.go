package progress

import (
	"sync"
	"time"

	"github.com/viant/lodstream/internal/clock"
)

// Delta represents an incremental counter change. The fields are signed so
// that gauges such as Active can move both ways.
type Delta struct {
	Requests   int
	Completed  int
	Failed     int
	Aborted    int
	Active     int
	Bytes      int64
	Lods       int
	Parsers    int
	Primitives int
}

// Counters is a point-in-time copy of the streaming counters.
type Counters struct {
	StartedAt time.Time

	// Requests counts issued window fetches; Completed, Failed and Aborted
	// count how they settled.
	Requests  int
	Completed int
	Failed    int
	Aborted   int
	// Active is the number of windows in flight.
	Active int
	// Bytes is the payload volume delivered to parsers.
	Bytes int64
	// Lods counts parsed levels, Parsers completed assets.
	Lods       int
	Parsers    int
	Primitives int
}

// Throughput returns the delivered bytes per second since StartedAt.
func (c Counters) Throughput(now time.Time) float64 {
	elapsed := now.Sub(c.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(c.Bytes) / elapsed
}

// Progress keeps aggregated streaming counters. It is safe for concurrent use
// and a nil tracker ignores every call.
type Progress struct {
	mux      sync.Mutex
	counters Counters
	onChange func(Counters)
}

// New creates a tracker; onChange may be nil.
func New(onChange func(Counters)) *Progress {
	return &Progress{counters: Counters{StartedAt: clock.Now()}, onChange: onChange}
}

// Update applies d. A registered callback receives the updated counters
// outside of the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mux.Lock()
	c := &p.counters
	c.Requests += d.Requests
	c.Completed += d.Completed
	c.Failed += d.Failed
	c.Aborted += d.Aborted
	c.Active += d.Active
	c.Bytes += d.Bytes
	c.Lods += d.Lods
	c.Parsers += d.Parsers
	c.Primitives += d.Primitives
	snapshot := *c
	cb := p.onChange
	p.mux.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Reset zeroes the counters and restarts the clock.
func (p *Progress) Reset() {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.counters = Counters{StartedAt: clock.Now()}
	p.mux.Unlock()
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.counters
}

// OnChange registers the callback invoked after every Update. Passing nil
// disables it; only one callback is kept.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mux.Lock()
	p.onChange = cb
	p.mux.Unlock()
}
