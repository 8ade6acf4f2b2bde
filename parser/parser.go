package parser

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/service/event"
)

// RequestInfo describes one LOD window to fetch.
type RequestInfo struct {
	Asset  string
	Source string
	Lod    int
	Offset int64
	Size   int64
}

// ProgressEvent reports the fetched ratio of the in-flight window.
type ProgressEvent struct {
	Parser *Parser
	Rate   float32
}

// PriorityChange reports a transition of the scheduling priority.
type PriorityChange struct {
	Parser   *Parser
	Previous float32
	Current  float32
}

type window struct {
	lod    int
	offset int64
	size   int64
}

// Parser is the LOD state machine of one streamed asset. It is driven from a
// single thread; signal handlers run synchronously on that thread.
type Parser struct {
	id       string
	source   string
	format   Format
	options  *Options
	mode     Mode
	resolver Resolver
	logger   zerolog.Logger

	header        Header
	metadata      Metadata
	blobSource    string
	baseOffset    int64
	headerPending bool
	headerRead    bool

	previousLod  int
	currentLod   int
	requiredLod  int
	priority     float32
	busy         bool
	complete     bool
	disposed     bool
	pending      window
	lastQuantity int
	parseHandle  job.Handle

	Ready                 event.Signal[*Parser]
	Progress              event.Signal[ProgressEvent]
	Error                 event.Signal[*Error]
	Completed             event.Signal[*Parser]
	LodRequestComplete    event.Signal[*Parser]
	BeforePriorityChanged event.Signal[PriorityChange]
	PriorityChanged       event.Signal[PriorityChange]
}

// New creates a parser for format.
func New(format Format, options ...Option) *Parser {
	p := &Parser{
		format:      format,
		options:     &Options{},
		logger:      zerolog.Nop(),
		previousLod: -1,
		currentLod:  -1,
	}
	for _, opt := range options {
		opt(p)
	}
	p.options.Asset = p.id
	p.options.Source = p.source
	return p
}

func (p *Parser) ID() string                 { return p.id }
func (p *Parser) Source() string             { return p.source }
func (p *Parser) Format() Format             { return p.format }
func (p *Parser) Header() Header             { return p.header }
func (p *Parser) Metadata() Metadata         { return p.metadata }
func (p *Parser) PreviousLod() int           { return p.previousLod }
func (p *Parser) CurrentLod() int            { return p.currentLod }
func (p *Parser) RequiredLod() int           { return p.requiredLod }
func (p *Parser) Busy() bool                 { return p.busy }
func (p *Parser) Complete() bool             { return p.complete }
func (p *Parser) HeaderRead() bool           { return p.headerRead }
func (p *Parser) Mode() Mode                 { return p.mode }
func (p *Parser) SetMode(mode Mode)          { p.mode = mode }
func (p *Parser) LastQuantity() int          { return p.lastQuantity }
func (p *Parser) RequestedPriority() float32 { return p.priority }

// MaxLod returns the highest level, or -1 before the header is read.
func (p *Parser) MaxLod() int {
	if !p.headerRead {
		return -1
	}
	return p.format.MaxLod()
}

// State returns the current stage.
func (p *Parser) State() State {
	switch {
	case p.disposed:
		return StateDisposed
	case p.complete:
		return StateComplete
	case !p.headerRead && p.headerPending:
		return StateHeaderPending
	case !p.headerRead:
		return StateUnstarted
	case p.parseHandle != 0:
		return StateLodParsing
	case p.busy:
		return StateLodFetching
	case p.pending.size > 0:
		return StateLodPending
	}
	return StateIdle
}

// Priority returns the scheduling priority: the requested priority while a
// window is ready to fetch, 0 otherwise.
func (p *Parser) Priority() float32 {
	if p.busy || p.disposed || p.complete || !p.headerRead || p.pending.size <= 0 {
		return 0
	}
	return p.priority
}

// BeginHeader marks the container header as being fetched.
func (p *Parser) BeginHeader() {
	if !p.headerRead {
		p.headerPending = true
	}
}

// Parse reads the container and format headers once, then prepares the first
// window. Subsequent calls are no-ops.
func (p *Parser) Parse(data []byte) error {
	if p.disposed {
		return ErrDisposed
	}
	if p.headerRead {
		return nil
	}
	if err := p.parseHeader(data); err != nil {
		p.headerPending = false
		return p.fail(KindFormat, err)
	}
	p.headerPending = false
	p.headerRead = true
	p.logger.Debug().Str("asset", p.id).Int("maxLod", p.format.MaxLod()).Msg("header parsed")
	windowErr := p.transition(p.prepareNextLod)
	p.Ready.Emit(p)
	if p.complete {
		p.terminated()
	} else if windowErr != nil {
		return p.fail(KindFormat, windowErr)
	}
	return nil
}

func (p *Parser) parseHeader(data []byte) error {
	header, err := ReadHeader(data)
	if err != nil {
		return err
	}
	if int64(len(data)) < header.Size() {
		return fmt.Errorf("%w: format header needs %d bytes, got %d", ErrHeaderTooShort, header.Size(), len(data))
	}
	metadata, err := p.format.HeaderParsed(data[HeaderSize:header.Size()], p.options)
	if err != nil {
		return err
	}
	p.header = header
	p.metadata = metadata
	if metadata.LinkedAsset == 0 {
		p.blobSource = p.source
		p.baseOffset = header.Size()
		return nil
	}
	if p.resolver == nil {
		return fmt.Errorf("%w: %d", ErrUnresolvedAsset, metadata.LinkedAsset)
	}
	if p.blobSource, p.baseOffset, err = p.resolver(metadata.LinkedAsset); err != nil {
		return fmt.Errorf("%w: %d: %v", ErrUnresolvedAsset, metadata.LinkedAsset, err)
	}
	return nil
}

// SetRequiredLod changes the target level. The pending window is recomputed
// when the value changes and no request is in flight.
func (p *Parser) SetRequiredLod(lod int) {
	if p.requiredLod == lod {
		return
	}
	p.requiredLod = lod
	if p.busy || !p.headerRead || p.complete || p.disposed {
		return
	}
	if err := p.transition(p.computeWindow); err != nil {
		_ = p.fail(KindFormat, err)
	}
}

// SetPriority changes the requested priority.
func (p *Parser) SetPriority(priority float32) {
	previous := p.Priority()
	p.BeforePriorityChanged.Emit(PriorityChange{Parser: p, Previous: previous, Current: previous})
	p.priority = priority
	p.PriorityChanged.Emit(PriorityChange{Parser: p, Previous: previous, Current: p.Priority()})
}

// NextLodRequestInfo returns the pending window.
func (p *Parser) NextLodRequestInfo() (RequestInfo, bool) {
	if p.pending.size <= 0 || !p.headerRead || p.complete || p.disposed {
		return RequestInfo{}, false
	}
	return RequestInfo{
		Asset:  p.id,
		Source: p.blobSource,
		Lod:    p.pending.lod,
		Offset: p.pending.offset,
		Size:   p.pending.size,
	}, true
}

// LodRequestFetchingBegin marks the pending window as in flight.
func (p *Parser) LodRequestFetchingBegin() (RequestInfo, error) {
	switch {
	case p.disposed:
		return RequestInfo{}, ErrDisposed
	case !p.headerRead:
		return RequestInfo{}, ErrHeaderNotRead
	case p.busy:
		return RequestInfo{}, ErrBusy
	}
	info, ok := p.NextLodRequestInfo()
	if !ok {
		return RequestInfo{}, ErrNoPendingRequest
	}
	p.transition(func() error {
		p.busy = true
		return nil
	})
	return info, nil
}

// LodRequestFetchingProgress relays the fetched ratio of the in-flight window.
func (p *Parser) LodRequestFetchingProgress(rate float32) {
	if !p.busy || p.disposed {
		return
	}
	p.Progress.Emit(ProgressEvent{Parser: p, Rate: rate})
}

// LodRequestFetchingError ends the in-flight request without advancing. The
// window is kept and nothing is retried.
func (p *Parser) LodRequestFetchingError(err error) {
	if !p.busy || p.disposed {
		return
	}
	p.transition(func() error {
		p.busy = false
		return nil
	})
	_ = p.fail(KindFetch, err)
}

// LodRequestFetchingAborted ends the in-flight request without an error; the
// window is recomputed against the current required level.
func (p *Parser) LodRequestFetchingAborted() {
	if !p.busy || p.disposed {
		return
	}
	if err := p.transition(func() error {
		p.busy = false
		return p.computeWindow()
	}); err != nil {
		_ = p.fail(KindFormat, err)
	}
}

// LodRequestFetchingComplete parses the fetched window, inline or as a job
// depending on the mode, and then prepares the next window.
func (p *Parser) LodRequestFetchingComplete(data []byte) error {
	if p.disposed {
		return ErrDisposed
	}
	if !p.busy || p.parseHandle != 0 {
		return ErrNotBusy
	}
	if int64(len(data)) < p.pending.size {
		err := fmt.Errorf("%w: got %d bytes, want %d", ErrShortPayload, len(data), p.pending.size)
		p.transition(func() error {
			p.busy = false
			return nil
		})
		return p.fail(KindFetch, err)
	}
	data = data[:p.pending.size]
	if p.mode.IsTimeSliced() {
		p.parseHandle = p.mode.manager.Push(&parseJob{parser: p, data: data, priority: p.mode.priority})
		return nil
	}
	return p.finishLod(p.parseLod(data))
}

// Dispose detaches every handler and cancels a pending parse job.
func (p *Parser) Dispose() {
	if p.disposed {
		return
	}
	if p.parseHandle != 0 && p.mode.manager != nil {
		p.mode.manager.Remove(p.parseHandle)
		p.parseHandle = 0
	}
	p.disposed = true
	p.busy = false
	p.Ready.Clear()
	p.Progress.Clear()
	p.Error.Clear()
	p.Completed.Clear()
	p.LodRequestComplete.Clear()
	p.BeforePriorityChanged.Clear()
	p.PriorityChanged.Clear()
}

func (p *Parser) parseLod(data []byte) error {
	next := p.pending.lod
	if err := p.format.LodParsed(p.currentLod, next, data, p.options); err != nil {
		return err
	}
	p.lastQuantity = 0
	if quantifier, ok := p.format.(Quantifier); ok {
		p.lastQuantity = quantifier.LodQuantity(p.currentLod, next)
	}
	p.previousLod = p.currentLod
	p.currentLod = next
	return nil
}

func (p *Parser) finishLod(parseErr error) error {
	if p.disposed {
		return ErrDisposed
	}
	if parseErr != nil {
		p.transition(func() error {
			p.busy = false
			return nil
		})
		return p.fail(KindFormat, parseErr)
	}
	windowErr := p.transition(func() error {
		p.busy = false
		return p.prepareNextLod()
	})
	p.logger.Debug().Str("asset", p.id).Int("lod", p.currentLod).Msg("lod parsed")
	p.LodRequestComplete.Emit(p)
	if p.complete {
		p.terminated()
		return nil
	}
	if windowErr != nil {
		return p.fail(KindFormat, windowErr)
	}
	return nil
}

// prepareNextLod terminates the parser when the current level is final and
// computes the next window otherwise.
func (p *Parser) prepareNextLod() error {
	if p.format.Complete(p.currentLod) {
		p.complete = true
		p.pending = window{}
		return nil
	}
	return p.computeWindow()
}

func (p *Parser) computeWindow() error {
	p.pending = window{}
	if p.currentLod >= p.requiredLod {
		return nil
	}
	lod, offset, size := p.format.NextLod(p.currentLod, p.requiredLod)
	if lod <= p.currentLod {
		return nil
	}
	if size <= 0 {
		return fmt.Errorf("%w: lod %d", ErrEmptyWindow, lod)
	}
	p.pending = window{lod: lod, offset: p.baseOffset + offset, size: size}
	return nil
}

func (p *Parser) terminated() {
	p.format.Completed()
	p.logger.Debug().Str("asset", p.id).Msg("asset complete")
	p.Completed.Emit(p)
}

// transition runs fn and emits PriorityChanged when the effective priority
// moved.
func (p *Parser) transition(fn func() error) error {
	previous := p.Priority()
	err := fn()
	if current := p.Priority(); current != previous {
		p.PriorityChanged.Emit(PriorityChange{Parser: p, Previous: previous, Current: current})
	}
	return err
}

func (p *Parser) fail(kind Kind, err error) error {
	ret := &Error{Kind: kind, Asset: p.id, Lod: p.currentLod, Err: err}
	p.logger.Debug().Err(err).Str("asset", p.id).Str("kind", kind.String()).Msg("asset error")
	p.Error.Emit(ret)
	return ret
}
