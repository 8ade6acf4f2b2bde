package mipchain

import (
	"errors"
	"fmt"
)

// Extension is the container extension id of the format.
const Extension uint16 = 0x0201

// Encodings with a fixed texel size; their mip sizes are validated.
const (
	RGBA8 = "rgba8"
	RGB8  = "rgb8"
	R8    = "r8"
)

var bytesPerTexel = map[string]int{RGBA8: 4, RGB8: 3, R8: 1}

var (
	// ErrInvalidHeader is returned for a header that cannot describe a mip chain.
	ErrInvalidHeader = errors.New("mipchain: invalid header")
	// ErrNoEncoding is returned when none of the listed encodings is accepted.
	ErrNoEncoding = errors.New("mipchain: no acceptable encoding")
	// ErrShortMip is returned when a window does not hold a whole mip.
	ErrShortMip = errors.New("mipchain: short mip data")
)

// Mip locates one mip level within the blob section.
type Mip struct {
	Offset int64 `msgpack:"offset"`
	Size   int64 `msgpack:"size"`
}

// End returns the offset right after the mip.
func (m Mip) End() int64 { return m.Offset + m.Size }

// Encoding is the mip chain stored in one pixel encoding.
type Encoding struct {
	Name string `msgpack:"name"`
	Mips []Mip  `msgpack:"mips"`
}

// Header is the msgpack encoded format header.
type Header struct {
	LinkedAsset uint32     `msgpack:"linkedAsset"`
	Width       int        `msgpack:"width"`
	Height      int        `msgpack:"height"`
	Faces       int        `msgpack:"faces"`
	NumMips     int        `msgpack:"mips"`
	Encodings   []Encoding `msgpack:"encodings"`
}

// MipSize returns the width and height of a mip.
func (h *Header) MipSize(mip int) (int, int) {
	return max(1, h.Width>>mip), max(1, h.Height>>mip)
}

func (h *Header) validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidHeader, h.Width, h.Height)
	}
	if h.Faces != 1 && h.Faces != 6 {
		return fmt.Errorf("%w: %d faces", ErrInvalidHeader, h.Faces)
	}
	if h.NumMips <= 0 || h.NumMips > maxMips(h.Width, h.Height) {
		return fmt.Errorf("%w: %d mips for %dx%d", ErrInvalidHeader, h.NumMips, h.Width, h.Height)
	}
	if len(h.Encodings) == 0 {
		return fmt.Errorf("%w: no encodings", ErrInvalidHeader)
	}
	for _, encoding := range h.Encodings {
		if len(encoding.Mips) != h.NumMips {
			return fmt.Errorf("%w: %s lists %d mips, want %d", ErrInvalidHeader, encoding.Name, len(encoding.Mips), h.NumMips)
		}
		for i, mip := range encoding.Mips {
			if mip.Size <= 0 || mip.Offset < 0 {
				return fmt.Errorf("%w: %s mip %d has range [%d,+%d)", ErrInvalidHeader, encoding.Name, i, mip.Offset, mip.Size)
			}
			if i > 0 && mip.Offset < encoding.Mips[i-1].End() {
				return fmt.Errorf("%w: %s mip %d overlaps mip %d", ErrInvalidHeader, encoding.Name, i, i-1)
			}
			if bpp, ok := bytesPerTexel[encoding.Name]; ok {
				w, hh := h.MipSize(i)
				if want := int64(w * hh * bpp * h.Faces); mip.Size != want {
					return fmt.Errorf("%w: %s mip %d is %d bytes, want %d", ErrInvalidHeader, encoding.Name, i, mip.Size, want)
				}
			}
		}
	}
	return nil
}

func maxMips(width, height int) int {
	ret := 1
	for size := max(width, height); size > 1; size >>= 1 {
		ret++
	}
	return ret
}
