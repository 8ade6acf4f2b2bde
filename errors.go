package lodstream

import "errors"

var (
	// ErrUnknownFormat is returned when no format is registered for a container extension.
	ErrUnknownFormat = errors.New("lodstream: unknown container extension")
	// ErrUnmarshalledFetcher is returned when the asynchronous default fetcher
	// is combined with unmarshalled scheduler results.
	ErrUnmarshalledFetcher = errors.New("lodstream: asynchronous fetcher requires marshalled results")
)
