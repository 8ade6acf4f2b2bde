package parser

// State is the observable stage of a parser.
type State int

const (
	StateUnstarted State = iota
	StateHeaderPending
	// StateIdle means the header is read and requiredLod is already satisfied.
	StateIdle
	StateLodPending
	StateLodFetching
	StateLodParsing
	StateComplete
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateHeaderPending:
		return "headerPending"
	case StateIdle:
		return "idle"
	case StateLodPending:
		return "lodPending"
	case StateLodFetching:
		return "lodFetching"
	case StateLodParsing:
		return "lodParsing"
	case StateComplete:
		return "complete"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}
