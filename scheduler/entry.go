package scheduler

import (
	"context"

	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/service/event"
	"github.com/viant/lodstream/tracing"
)

type entryState uint8

const (
	statePending entryState = iota
	stateActive
)

// entry is the scheduler's record of one parser.
type entry struct {
	id     uint64
	parser *parser.Parser
	state  entryState

	priorityKey  event.Key
	completedKey event.Key
	errorKey     event.Key
	lodKey       event.Key

	request *request
}

// request is an in-flight window fetch. A request is settled once its
// outcome was handed to the parser; entries stay active until the parser
// reports the window processed.
type request struct {
	token    uint64
	info     parser.RequestInfo
	cancel   context.CancelFunc
	span     *tracing.Span
	progress float32
	settled  bool

	buffered bool
	data     []byte
}

func (r *request) settle(err error) {
	if r.settled {
		return
	}
	r.settled = true
	r.cancel()
	tracing.EndSpan(r.span, err)
}

// result is a fetch callback marshalled onto the stepping thread.
type result struct {
	entry    uint64
	token    uint64
	progress float32
	done     bool
	data     []byte
	err      error
}
