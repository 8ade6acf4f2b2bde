package parser

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic           = errors.New("parser: bad container magic")
	ErrUnsupportedVersion = errors.New("parser: unsupported container version")
	ErrHeaderTooShort     = errors.New("parser: header too short")
	ErrFormatHeaderSize   = errors.New("parser: format header too large")
	ErrInvalidLodTable    = errors.New("parser: invalid lod table")
	ErrHeaderNotRead      = errors.New("parser: header not read")
	ErrBusy               = errors.New("parser: request already in flight")
	ErrNotBusy            = errors.New("parser: no request in flight")
	ErrNoPendingRequest   = errors.New("parser: no pending lod request")
	ErrEmptyWindow        = errors.New("parser: next lod window is empty")
	ErrShortPayload       = errors.New("parser: lod payload shorter than requested window")
	ErrUnresolvedAsset    = errors.New("parser: linked asset cannot be resolved")
	ErrDisposed           = errors.New("parser: disposed")
)

// Kind categorizes per-asset failures.
type Kind int

const (
	KindFetch Kind = iota + 1
	KindFormat
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindFormat:
		return "format"
	case KindContract:
		return "contract"
	}
	return "unknown"
}

// Error is a non-fatal per-asset failure.
type Error struct {
	Kind  Kind
	Asset string
	Lod   int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error on asset %q at lod %d: %v", e.Kind, e.Asset, e.Lod, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFetch reports whether err is a fetch failure.
func IsFetch(err error) bool { return kindOf(err) == KindFetch }

// IsFormat reports whether err is a malformed header or payload.
func IsFormat(err error) bool { return kindOf(err) == KindFormat }

// IsContract reports whether err is an API or configuration misuse.
func IsContract(err error) bool { return kindOf(err) == KindContract }

func kindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return 0
}
