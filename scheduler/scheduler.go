package scheduler

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/viant/lodstream/fetch"
	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/progress"
	"github.com/viant/lodstream/service/event"
	"github.com/viant/lodstream/service/messaging/memory"
	"github.com/viant/lodstream/tracing"
)

// outrankMargin is the lead a pending parser needs over an active one to
// count towards aborting it.
const outrankMargin = 1e-3

// Scheduler issues LOD window fetches for registered parsers. It is a job.Job
// and is driven from a single thread.
type Scheduler struct {
	config   Config
	fetcher  fetch.Fetcher
	manager  *job.Manager
	progress *progress.Progress
	logger   zerolog.Logger

	priority float32
	entries  map[uint64]*entry
	byParser map[*parser.Parser]*entry
	pending  []*entry
	active   []*entry
	dirty    bool
	seq      uint64
	tokens   uint64
	reported float32

	// done results are bounded by the requests in flight; progress updates
	// are lossy.
	results *memory.Queue[result]
	updates *memory.Queue[result]

	// Active fires when the active set grows from empty, Inactive when it
	// shrinks back to empty.
	Active   event.Signal[*Scheduler]
	Inactive event.Signal[*Scheduler]
}

// New creates a scheduler issuing requests through fetcher.
func New(fetcher fetch.Fetcher, options ...Option) (*Scheduler, error) {
	s := &Scheduler{
		config:   DefaultConfig(),
		fetcher:  fetcher,
		logger:   zerolog.Nop(),
		entries:  map[uint64]*entry{},
		byParser: map[*parser.Parser]*entry{},
	}
	for _, opt := range options {
		opt(s)
	}
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.config.UseJobBasedParsing && s.manager == nil {
		return nil, ErrNoManager
	}
	if s.progress == nil {
		s.progress = progress.New(nil)
	}
	s.priority = s.config.Priority
	buffer := 4*s.config.MaxNumActiveParsers + 16
	s.results = memory.NewQueue[result](memory.Config{QueueBuffer: buffer})
	s.updates = memory.NewQueue[result](memory.Config{QueueBuffer: buffer})
	return s, nil
}

// Config returns the scheduler parameters.
func (s *Scheduler) Config() Config { return s.config }

// Stats returns the streaming counters.
func (s *Scheduler) Stats() progress.Counters { return s.progress.Snapshot() }

// NumActiveParsers returns the number of parsers with a request in flight.
func (s *Scheduler) NumActiveParsers() int { return len(s.active) }

// NumPendingParsers returns the number of parsers waiting for a slot.
func (s *Scheduler) NumPendingParsers() int { return len(s.pending) }

// Contains reports whether p is scheduled.
func (s *Scheduler) Contains(p *parser.Parser) bool {
	_, ok := s.byParser[p]
	return ok
}

// Paused reports whether the scheduler priority is zero.
func (s *Scheduler) Paused() bool { return s.priority <= 0 }

// SetPriority changes the scheduler priority; zero pauses it. While paused no
// request is issued and fetched windows are held back until it resumes.
// Pausing aborts the requests that are still below the progress threshold.
func (s *Scheduler) SetPriority(priority float32) {
	if priority < 0 {
		priority = 0
	}
	wasPaused := s.Paused()
	s.priority = priority
	if !wasPaused && s.Paused() && s.config.RequestAbortingEnabled {
		s.abortRequests()
	}
}

// AddParser registers p. The parser becomes runnable once its header was read
// and it has a window to fetch. A rejected parser yields a *parser.Error of
// kind parser.KindContract wrapping the reason.
func (s *Scheduler) AddParser(p *parser.Parser) error {
	if err := s.admit(p); err != nil {
		ret := &parser.Error{Kind: parser.KindContract, Lod: -1, Err: err}
		if p != nil {
			ret.Asset, ret.Lod = p.ID(), p.CurrentLod()
		}
		return ret
	}
	s.seq++
	e := &entry{id: s.seq, parser: p, state: statePending}
	if s.config.UseJobBasedParsing {
		p.SetMode(parser.TimeSliced(s.manager, 0))
	}
	e.completedKey = p.Completed.Connect(func(*parser.Parser) { s.parserCompleted(e) })
	e.errorKey = p.Error.Connect(func(err *parser.Error) { s.parserFailed(e, err) })
	e.lodKey = p.LodRequestComplete.Connect(func(*parser.Parser) { s.requestDisposed(e) })
	s.subscribePriority(e)
	s.entries[e.id] = e
	s.byParser[p] = e
	s.pending = append(s.pending, e)
	s.dirty = true
	s.logger.Debug().Str("asset", p.ID()).Uint64("entry", e.id).Msg("parser added")
	return nil
}

func (s *Scheduler) admit(p *parser.Parser) error {
	switch {
	case p == nil:
		return ErrNilParser
	case s.Contains(p):
		return ErrDuplicateParser
	case p.State() == parser.StateDisposed:
		return ErrParserDisposed
	case p.Complete():
		return ErrParserComplete
	}
	return nil
}

// RemoveParser unregisters p and aborts its in-flight request. Later fetch
// callbacks for that request are ignored.
func (s *Scheduler) RemoveParser(p *parser.Parser) bool {
	e, ok := s.byParser[p]
	if !ok {
		return false
	}
	s.remove(e, true)
	s.logger.Debug().Str("asset", p.ID()).Uint64("entry", e.id).Msg("parser removed")
	return true
}

// Clear unregisters every parser and resets the counters.
func (s *Scheduler) Clear() {
	for len(s.active) > 0 {
		s.remove(s.active[0], true)
	}
	for len(s.pending) > 0 {
		s.remove(s.pending[0], true)
	}
	s.results.Drain()
	s.updates.Drain()
	s.progress.Reset()
	s.dirty = false
}

// Complete reports whether no parser is scheduled.
func (s *Scheduler) Complete() bool { return len(s.entries) == 0 }

// BeforeFirstStep implements job.Job.
func (s *Scheduler) BeforeFirstStep() {
	s.logger.Debug().Int("pending", len(s.pending)).Msg("scheduler started")
}

// AfterLastStep implements job.Job.
func (s *Scheduler) AfterLastStep() {
	s.logger.Debug().Msg("scheduler drained")
}

// Priority implements job.Job. It is zero while paused or when a step would
// have nothing to do. A complete scheduler stays selectable so that a job
// manager can retire it.
func (s *Scheduler) Priority() float32 {
	if s.Paused() {
		return 0
	}
	if s.Complete() || s.results.Size() > 0 || s.updates.Size() > 0 || s.hasBuffered() || s.hasDisposed() {
		return s.priority
	}
	if len(s.active) < s.config.MaxNumActiveParsers && s.hasRunnable() {
		return s.priority
	}
	if s.config.RequestAbortingEnabled && s.hasUnwanted() {
		return s.priority
	}
	return 0
}

// PriorityChanged implements job.Reprioritizer.
func (s *Scheduler) PriorityChanged() bool {
	current := s.Priority()
	if current == s.reported {
		return false
	}
	s.reported = current
	return true
}

// Step implements job.Job. It applies queued fetch results, delivers windows
// held back while paused, aborts requests that lost relevance and issues up
// to MaxNumActiveParsers new requests.
func (s *Scheduler) Step() {
	s.drain()
	s.prune()
	if s.Paused() {
		if s.config.RequestAbortingEnabled {
			s.abortRequests()
		}
		return
	}
	s.deliverBuffered()
	if s.config.RequestAbortingEnabled {
		s.abortRequests()
	}
	for issued := 0; issued < s.config.MaxNumActiveParsers && len(s.active) < s.config.MaxNumActiveParsers; issued++ {
		e := s.nextRunnable()
		if e == nil {
			break
		}
		s.executeRequest(e)
	}
}

func (s *Scheduler) nextRunnable() *entry {
	s.sortPending()
	if len(s.pending) == 0 || s.pending[0].parser.Priority() <= 0 {
		return nil
	}
	return s.pending[0]
}

// sortPending orders pending entries by descending parser priority; ties go
// to the entry registered first.
func (s *Scheduler) sortPending() {
	if !s.dirty {
		return
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		pi, pj := s.pending[i].parser.Priority(), s.pending[j].parser.Priority()
		if pi != pj {
			return pi > pj
		}
		return s.pending[i].id < s.pending[j].id
	})
	s.dirty = false
}

func (s *Scheduler) executeRequest(e *entry) {
	s.unsubscribePriority(e)
	s.pending = removeEntry(s.pending, e)
	e.state = stateActive
	s.active = append(s.active, e)
	if len(s.active) == 1 {
		s.Active.Emit(s)
	}
	info, err := e.parser.LodRequestFetchingBegin()
	if err != nil {
		s.logger.Warn().Err(err).Str("asset", e.parser.ID()).Msg("request not started")
		s.requeue(e)
		return
	}
	s.tokens++
	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := tracing.StartSpan(ctx, "lodstream.fetch", tracing.KindClient)
	span.WithWindow(info.Source, info.Lod, info.Offset, info.Size)
	req := &request{token: s.tokens, info: info, cancel: cancel, span: span}
	e.request = req
	s.progress.Update(progress.Delta{Requests: 1, Active: 1})
	s.logger.Debug().Str("asset", info.Asset).Int("lod", info.Lod).Int64("offset", info.Offset).Int64("size", info.Size).Msg("request issued")

	id, token := e.id, req.token
	var onProgress fetch.ProgressFunc
	var onDone fetch.DoneFunc
	if s.config.MarshalResults {
		onProgress = func(rate float32) {
			s.updates.TryPublish(&result{entry: id, token: token, progress: rate})
		}
		onDone = func(r *fetch.Result) {
			_ = s.results.Publish(context.Background(), &result{entry: id, token: token, done: true, data: r.Data, err: r.Err})
		}
	} else {
		onProgress = func(rate float32) { s.requestProgress(id, token, rate) }
		onDone = func(r *fetch.Result) { s.requestDone(id, token, r.Data, r.Err) }
	}
	s.fetcher.Fetch(ctx, &fetch.Request{Source: info.Source, Offset: info.Offset, Size: info.Size}, onProgress, onDone)
}

// drain applies queued progress updates, then queued outcomes.
func (s *Scheduler) drain() {
	for _, r := range s.updates.Drain() {
		s.requestProgress(r.entry, r.token, r.progress)
	}
	for _, r := range s.results.Drain() {
		s.requestDone(r.entry, r.token, r.data, r.err)
	}
}

// lookup returns the entry owning an unsettled request with token.
func (s *Scheduler) lookup(id, token uint64) *entry {
	e, ok := s.entries[id]
	if !ok || e.request == nil || e.request.token != token || e.request.settled || e.request.buffered {
		return nil
	}
	return e
}

func (s *Scheduler) requestProgress(id, token uint64, rate float32) {
	e := s.lookup(id, token)
	if e == nil {
		return
	}
	e.request.progress = rate
	e.parser.LodRequestFetchingProgress(rate)
}

func (s *Scheduler) requestDone(id, token uint64, data []byte, err error) {
	e := s.lookup(id, token)
	if e == nil {
		return
	}
	if err != nil {
		s.requestFailed(e, err)
		return
	}
	e.request.progress = 1
	if s.Paused() {
		e.request.buffered = true
		e.request.data = data
		return
	}
	s.requestComplete(e, data)
}

// requestComplete hands the window to the parser. The entry returns to pending
// once the parser reports the window processed.
func (s *Scheduler) requestComplete(e *entry, data []byte) {
	req := e.request
	req.settle(nil)
	s.progress.Update(progress.Delta{Completed: 1, Active: -1, Bytes: int64(len(data))})
	s.logger.Debug().Str("asset", req.info.Asset).Int("lod", req.info.Lod).Int("bytes", len(data)).Msg("request complete")
	if err := e.parser.LodRequestFetchingComplete(data); err != nil && !errors.Is(err, parser.ErrDisposed) {
		s.logger.Debug().Err(err).Str("asset", req.info.Asset).Msg("window rejected")
	}
}

func (s *Scheduler) requestFailed(e *entry, err error) {
	req := e.request
	req.settle(err)
	s.progress.Update(progress.Delta{Failed: 1, Active: -1})
	s.logger.Warn().Err(err).Str("asset", req.info.Asset).Int("lod", req.info.Lod).Msg("request failed")
	e.parser.LodRequestFetchingError(err)
}

// requestDisposed returns an active entry to pending after its parser
// processed the fetched window.
func (s *Scheduler) requestDisposed(e *entry) {
	if e.state != stateActive {
		return
	}
	s.progress.Update(progress.Delta{Lods: 1, Primitives: e.parser.LastQuantity()})
	s.requeue(e)
}

func (s *Scheduler) requeue(e *entry) {
	e.request = nil
	s.deactivate(e)
	e.state = statePending
	s.pending = append(s.pending, e)
	s.subscribePriority(e)
	s.dirty = true
}

func (s *Scheduler) deactivate(e *entry) {
	before := len(s.active)
	s.active = removeEntry(s.active, e)
	if before > 0 && len(s.active) == 0 {
		s.Inactive.Emit(s)
	}
}

func (s *Scheduler) parserCompleted(e *entry) {
	s.progress.Update(progress.Delta{Parsers: 1})
	s.logger.Debug().Str("asset", e.parser.ID()).Msg("parser complete")
	s.remove(e, false)
}

func (s *Scheduler) parserFailed(e *entry, err *parser.Error) {
	s.logger.Warn().Err(err).Str("asset", e.parser.ID()).Str("kind", err.Kind.String()).Msg("parser failed")
	s.remove(e, false)
}

// remove disarms every subscription of e and drops it. An unsettled request is
// cancelled and, with abort set, handed back to the parser as aborted.
func (s *Scheduler) remove(e *entry, abort bool) {
	if _, ok := s.entries[e.id]; !ok {
		return
	}
	p := e.parser
	p.Completed.Disconnect(e.completedKey)
	p.Error.Disconnect(e.errorKey)
	p.LodRequestComplete.Disconnect(e.lodKey)
	s.unsubscribePriority(e)
	delete(s.entries, e.id)
	delete(s.byParser, p)
	if req := e.request; req != nil && !req.settled {
		req.settle(context.Canceled)
		s.progress.Update(progress.Delta{Aborted: 1, Active: -1})
		if abort {
			p.LodRequestFetchingAborted()
		}
	}
	e.request = nil
	if e.state == stateActive {
		s.deactivate(e)
	} else {
		s.pending = removeEntry(s.pending, e)
	}
}

// prune drops entries whose parser was disposed behind the scheduler's back.
func (s *Scheduler) prune() {
	if !s.hasDisposed() {
		return
	}
	var disposed []*entry
	for _, e := range s.entries {
		if e.parser.State() == parser.StateDisposed {
			disposed = append(disposed, e)
		}
	}
	sort.Slice(disposed, func(i, j int) bool { return disposed[i].id < disposed[j].id })
	for _, e := range disposed {
		s.remove(e, false)
	}
}

func (s *Scheduler) deliverBuffered() {
	for _, e := range append([]*entry(nil), s.active...) {
		if req := e.request; req != nil && req.buffered && !req.settled {
			data := req.data
			req.data = nil
			s.requestComplete(e, data)
		}
	}
}

// abortRequests cancels unsettled requests whose parser priority dropped to
// zero, and, below the progress threshold, requests outranked by pending
// parsers or held while paused.
func (s *Scheduler) abortRequests() {
	var aborted []*entry
	for _, e := range s.active {
		req := e.request
		if req == nil || req.settled || req.progress >= 1 {
			continue
		}
		requested := e.parser.RequestedPriority()
		if requested <= 0 {
			aborted = append(aborted, e)
			continue
		}
		if req.progress < s.config.AbortableRequestProgressThreshold && (s.Paused() || s.outranked(requested)) {
			aborted = append(aborted, e)
		}
	}
	for _, e := range aborted {
		s.abort(e)
	}
}

func (s *Scheduler) outranked(priority float32) bool {
	count := 0
	for _, e := range s.pending {
		if e.parser.Priority() > priority+outrankMargin {
			if count++; count >= s.config.MaxNumActiveParsers {
				return true
			}
		}
	}
	return false
}

func (s *Scheduler) abort(e *entry) {
	req := e.request
	req.settle(context.Canceled)
	s.progress.Update(progress.Delta{Aborted: 1, Active: -1})
	s.logger.Debug().Str("asset", req.info.Asset).Int("lod", req.info.Lod).Float32("progress", req.progress).Msg("request aborted")
	e.parser.LodRequestFetchingAborted()
	if _, ok := s.entries[e.id]; ok && e.state == stateActive {
		s.requeue(e)
	}
}

func (s *Scheduler) hasRunnable() bool {
	for _, e := range s.pending {
		if e.parser.Priority() > 0 {
			return true
		}
	}
	return false
}

func (s *Scheduler) hasBuffered() bool {
	for _, e := range s.active {
		if e.request != nil && e.request.buffered && !e.request.settled {
			return true
		}
	}
	return false
}

func (s *Scheduler) hasDisposed() bool {
	for _, e := range s.entries {
		if e.parser.State() == parser.StateDisposed {
			return true
		}
	}
	return false
}

func (s *Scheduler) hasUnwanted() bool {
	for _, e := range s.active {
		if req := e.request; req != nil && !req.settled && req.progress < 1 && e.parser.RequestedPriority() <= 0 {
			return true
		}
	}
	return false
}

func (s *Scheduler) subscribePriority(e *entry) {
	if e.priorityKey != 0 {
		return
	}
	e.priorityKey = e.parser.PriorityChanged.Connect(func(parser.PriorityChange) { s.dirty = true })
}

func (s *Scheduler) unsubscribePriority(e *entry) {
	if e.priorityKey == 0 {
		return
	}
	e.parser.PriorityChanged.Disconnect(e.priorityKey)
	e.priorityKey = 0
}

func removeEntry(entries []*entry, e *entry) []*entry {
	for i, candidate := range entries {
		if candidate == e {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

var (
	_ job.Job           = (*Scheduler)(nil)
	_ job.Reprioritizer = (*Scheduler)(nil)
)
