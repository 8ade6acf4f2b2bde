package mipchain

import (
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/viant/lodstream/parser"
)

// Texture holds the mips parsed so far, indexed by mip level.
type Texture struct {
	Width    int
	Height   int
	Encoding string
	Mips     [][]byte
	// AvailableLod is the highest parsed level, -1 before the first one.
	AvailableLod int
}

// Format streams a mip chain texture.
type Format struct {
	preferred []string
	header    Header
	mips      []Mip
	options   *parser.Options
	texture   Texture
	done      bool
}

// New creates a format that streams the first encoding listed in preferred, or
// the first encoding of the header when preferred is empty.
func New(preferred ...string) *Format {
	return &Format{preferred: preferred, texture: Texture{AvailableLod: -1}}
}

// Header returns the decoded header.
func (f *Format) Header() Header { return f.header }

// Texture returns the mips parsed so far.
func (f *Format) Texture() *Texture { return &f.texture }

// Done reports whether the full resolution mip was parsed.
func (f *Format) Done() bool { return f.done }

func (f *Format) HeaderParsed(data []byte, options *parser.Options) (parser.Metadata, error) {
	var header Header
	if err := msgpack.Unmarshal(data, &header); err != nil {
		return parser.Metadata{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if err := header.validate(); err != nil {
		return parser.Metadata{}, err
	}
	encoding, err := f.selectEncoding(header.Encodings)
	if err != nil {
		return parser.Metadata{}, err
	}
	f.header = header
	f.mips = encoding.Mips
	f.options = options
	f.texture = Texture{
		Width:        header.Width,
		Height:       header.Height,
		Encoding:     encoding.Name,
		Mips:         make([][]byte, header.NumMips),
		AvailableLod: -1,
	}
	return parser.Metadata{
		LinkedAsset: header.LinkedAsset,
		Attributes: map[string]string{
			"size":     fmt.Sprintf("%dx%d", header.Width, header.Height),
			"encoding": encoding.Name,
		},
	}, nil
}

func (f *Format) selectEncoding(encodings []Encoding) (Encoding, error) {
	if len(f.preferred) == 0 {
		return encodings[0], nil
	}
	for _, name := range f.preferred {
		if i := slices.IndexFunc(encodings, func(e Encoding) bool { return e.Name == name }); i >= 0 {
			return encodings[i], nil
		}
	}
	return Encoding{}, fmt.Errorf("%w: want one of %v", ErrNoEncoding, f.preferred)
}

// LodParsed copies the mips of levels (previousLod, currentLod]. The window
// starts at the mip of currentLod, the largest of the range.
func (f *Format) LodParsed(previousLod, currentLod int, data []byte, _ *parser.Options) error {
	start := f.mips[f.mip(currentLod)].Offset
	for lod := previousLod + 1; lod <= currentLod; lod++ {
		mip := f.mips[f.mip(lod)]
		from, to := mip.Offset-start, mip.End()-start
		if from < 0 || to > int64(len(data)) {
			return fmt.Errorf("%w: level %d needs [%d,%d) of %d bytes", ErrShortMip, lod, from, to, len(data))
		}
		f.texture.Mips[f.mip(lod)] = append([]byte(nil), data[from:to]...)
	}
	f.texture.AvailableLod = currentLod
	return nil
}

func (f *Format) mip(lod int) int { return f.header.NumMips - 1 - lod }

func (f *Format) Complete(currentLod int) bool { return currentLod >= 0 && f.mip(currentLod) <= 0 }
func (f *Format) Completed()                   { f.done = true }
func (f *Format) MaxLod() int                  { return f.header.NumMips - 1 }

// LodLowerBound returns lod clamped to the chain; every level exists.
func (f *Format) LodLowerBound(lod int) int {
	return min(max(lod, 0), f.MaxLod())
}

func (f *Format) NextLod(currentLod, requiredLod int) (int, int64, int64) {
	return parser.NextLodInRange(f, f.options, currentLod, requiredLod)
}

// LodRangeFetchingBound fetches the rest of the chain in one request unless
// overridden.
func (f *Format) LodRangeFetchingBound(int, int) parser.FetchingBound {
	return parser.FetchingBound{MinSize: parser.MaxLodRange}
}

func (f *Format) LodRangeRequestByteRange(lowerLod, upperLod int) (int64, int64) {
	largest, smallest := f.mips[f.mip(upperLod)], f.mips[f.mip(lowerLod)]
	return largest.Offset, smallest.End() - largest.Offset
}

// LodQuantity returns the texels added by levels (previousLod, currentLod].
func (f *Format) LodQuantity(previousLod, currentLod int) int {
	ret := 0
	for lod := previousLod + 1; lod <= currentLod; lod++ {
		w, h := f.header.MipSize(f.mip(lod))
		ret += w * h * f.header.Faces
	}
	return ret
}

var (
	_ parser.Format     = (*Format)(nil)
	_ parser.Quantifier = (*Format)(nil)
)
