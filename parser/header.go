package parser

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the length of the fixed container header.
	HeaderSize = 12
	// Version is the supported container version.
	Version = 1
	// MaxFormatHeaderSize bounds the format header a container may declare.
	MaxFormatHeaderSize = 16 << 20
)

var magic = [4]byte{'S', 'L', 'O', 'D'}

// Header is the fixed container header preceding every format header.
type Header struct {
	Version          uint8
	Flags            uint8
	Extension        uint16
	FormatHeaderSize uint32
}

// Size returns the number of bytes covering both headers.
func (h Header) Size() int64 { return HeaderSize + int64(h.FormatHeaderSize) }

// ReadHeader decodes the fixed container header from data.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: got %d bytes, need %d", ErrHeaderTooShort, len(data), HeaderSize)
	}
	if [4]byte(data[:4]) != magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadMagic, data[:4])
	}
	ret := Header{
		Version:          data[4],
		Flags:            data[5],
		Extension:        binary.BigEndian.Uint16(data[6:8]),
		FormatHeaderSize: binary.BigEndian.Uint32(data[8:12]),
	}
	if ret.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ret.Version)
	}
	if ret.FormatHeaderSize > MaxFormatHeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, limit %d", ErrFormatHeaderSize, ret.FormatHeaderSize, MaxFormatHeaderSize)
	}
	return ret, nil
}

// EncodeContainer lays out a complete container: fixed header, format header
// and the LOD blobs.
func EncodeContainer(extension uint16, formatHeader, blobs []byte) []byte {
	ret := make([]byte, HeaderSize, HeaderSize+len(formatHeader)+len(blobs))
	copy(ret, magic[:])
	ret[4] = Version
	binary.BigEndian.PutUint16(ret[6:8], extension)
	binary.BigEndian.PutUint32(ret[8:12], uint32(len(formatHeader)))
	ret = append(ret, formatHeader...)
	return append(ret, blobs...)
}
