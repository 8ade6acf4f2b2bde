package pop

import (
	"errors"
	"fmt"

	"github.com/viant/lodstream/parser"
)

// Extension is the container extension id of the format.
const Extension uint16 = 0x0101

var (
	// ErrInvalidHeader is returned for a header that cannot describe a mesh.
	ErrInvalidHeader = errors.New("pop: invalid header")
	// ErrInvalidBlob is returned for a level blob that does not match its header entry.
	ErrInvalidBlob = errors.New("pop: invalid level blob")
)

// VertexAttribute describes one interleaved vertex attribute.
type VertexAttribute struct {
	Name   string `msgpack:"name"`
	Size   int    `msgpack:"size"`
	Offset int    `msgpack:"offset"`
}

// Lod describes one level of the mesh.
type Lod struct {
	Level          int   `msgpack:"level"`
	PrecisionLevel int   `msgpack:"precision"`
	IndexCount     int   `msgpack:"indices"`
	VertexCount    int   `msgpack:"vertices"`
	BlobOffset     int64 `msgpack:"offset"`
	BlobSize       int64 `msgpack:"size"`
}

// Header is the msgpack encoded format header.
type Header struct {
	LinkedAsset      uint32            `msgpack:"linkedAsset"`
	Name             string            `msgpack:"name,omitempty"`
	MinLod           int               `msgpack:"minLod"`
	MaxLod           int               `msgpack:"maxLod"`
	FullPrecisionLod int               `msgpack:"fullPrecisionLod"`
	MinBound         [3]float32        `msgpack:"minBound"`
	MaxBound         [3]float32        `msgpack:"maxBound"`
	VertexSize       int               `msgpack:"vertexSize"`
	Attributes       []VertexAttribute `msgpack:"attributes"`
	SharedPartition  bool              `msgpack:"sharedPartition"`
	Lods             []Lod             `msgpack:"lods"`
}

// Blob is the msgpack encoded payload of one level.
type Blob struct {
	Indices  []uint16  `msgpack:"indices"`
	Vertices []float32 `msgpack:"vertices"`
}

func (h *Header) validate() error {
	if h.VertexSize <= 0 {
		return fmt.Errorf("%w: vertex size %d", ErrInvalidHeader, h.VertexSize)
	}
	if len(h.Lods) == 0 {
		return fmt.Errorf("%w: no levels", ErrInvalidHeader)
	}
	for _, attribute := range h.Attributes {
		if attribute.Size <= 0 || attribute.Offset < 0 || attribute.Offset+attribute.Size > h.VertexSize {
			return fmt.Errorf("%w: attribute %q does not fit a %d float vertex", ErrInvalidHeader, attribute.Name, h.VertexSize)
		}
	}
	for _, lod := range h.Lods {
		if lod.IndexCount%3 != 0 {
			return fmt.Errorf("%w: level %d has %d indices", ErrInvalidHeader, lod.Level, lod.IndexCount)
		}
	}
	return nil
}

func (h *Header) table() (*parser.LodTable, error) {
	levels := make([]parser.LodInfo, len(h.Lods))
	for i, lod := range h.Lods {
		levels[i] = parser.LodInfo{
			Level:      lod.Level,
			ByteOffset: lod.BlobOffset,
			ByteLength: lod.BlobSize,
			Quantity:   lod.IndexCount / 3,
		}
	}
	return parser.NewLodTable(levels)
}
