package mipchain

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/viant/lodstream/parser"
)

// Encode builds a single-face container from mips, largest first, stored in
// the named encoding.
func Encode(width, height int, encoding string, mips [][]byte) ([]byte, error) {
	header := Header{Width: width, Height: height, Faces: 1, NumMips: len(mips)}
	var blobs []byte
	entry := Encoding{Name: encoding}
	for _, mip := range mips {
		entry.Mips = append(entry.Mips, Mip{Offset: int64(len(blobs)), Size: int64(len(mip))})
		blobs = append(blobs, mip...)
	}
	header.Encodings = []Encoding{entry}
	if err := header.validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&header)
	if err != nil {
		return nil, fmt.Errorf("mipchain: encode header: %w", err)
	}
	return parser.EncodeContainer(Extension, data, blobs), nil
}

// Checker builds a full rgba8 chain of a checkerboard of the given size.
func Checker(size int) [][]byte {
	var ret [][]byte
	for s := size; ; s >>= 1 {
		s = max(s, 1)
		mip := make([]byte, s*s*4)
		for y := 0; y < s; y++ {
			for x := 0; x < s; x++ {
				v := byte(0)
				if (x+y)%2 == 0 {
					v = 0xff
				}
				i := (y*s + x) * 4
				mip[i], mip[i+1], mip[i+2], mip[i+3] = v, v, v, 0xff
			}
		}
		ret = append(ret, mip)
		if s == 1 {
			return ret
		}
	}
}
