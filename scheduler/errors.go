package scheduler

import "errors"

var (
	// ErrInvalidMaxActive is returned for a non-positive active parser limit.
	ErrInvalidMaxActive = errors.New("scheduler: maxNumActiveParsers must be positive")
	// ErrInvalidPriority is returned for a negative scheduler priority.
	ErrInvalidPriority = errors.New("scheduler: priority must not be negative")
	// ErrInvalidThreshold is returned for an abort threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("scheduler: abortable request progress threshold must be within [0, 1]")
	// ErrNoManager is returned when job based parsing is enabled without a job manager.
	ErrNoManager = errors.New("scheduler: job based parsing requires a job manager")
	// ErrNoFetcher is returned when no fetcher was supplied.
	ErrNoFetcher = errors.New("scheduler: fetcher is required")
	// ErrNilParser is returned by AddParser for a nil parser.
	ErrNilParser = errors.New("scheduler: nil parser")
	// ErrDuplicateParser is returned by AddParser for a parser already scheduled.
	ErrDuplicateParser = errors.New("scheduler: parser already scheduled")
	// ErrParserComplete is returned by AddParser for a parser with nothing left to load.
	ErrParserComplete = errors.New("scheduler: parser already complete")
	// ErrParserDisposed is returned by AddParser for a disposed parser.
	ErrParserDisposed = errors.New("scheduler: parser disposed")
)
