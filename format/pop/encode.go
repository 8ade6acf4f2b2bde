package pop

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/viant/lodstream/parser"
)

// Level is the content a level adds when building a container.
type Level struct {
	PrecisionLevel int
	Blob           Blob
}

// Encode builds a container with the blobs embedded after the format header.
// Levels are numbered from 0 in the order given; template supplies the
// descriptive header fields.
func Encode(template Header, levels []Level) ([]byte, error) {
	header := template
	header.LinkedAsset = 0
	header.Lods = make([]Lod, 0, len(levels))
	var blobs []byte
	for i, level := range levels {
		data, err := msgpack.Marshal(&level.Blob)
		if err != nil {
			return nil, fmt.Errorf("pop: encode level %d: %w", i, err)
		}
		vertexCount := 0
		if header.VertexSize > 0 {
			vertexCount = len(level.Blob.Vertices) / header.VertexSize
		}
		header.Lods = append(header.Lods, Lod{
			Level:          i,
			PrecisionLevel: level.PrecisionLevel,
			IndexCount:     len(level.Blob.Indices),
			VertexCount:    vertexCount,
			BlobOffset:     int64(len(blobs)),
			BlobSize:       int64(len(data)),
		})
		blobs = append(blobs, data...)
	}
	header.MinLod = 0
	header.MaxLod = len(levels) - 1
	if header.FullPrecisionLod == 0 {
		header.FullPrecisionLod = header.MaxLod
	}
	if err := header.validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&header)
	if err != nil {
		return nil, fmt.Errorf("pop: encode header: %w", err)
	}
	return parser.EncodeContainer(Extension, data, blobs), nil
}

// Grid builds a levels x levels strip of quads, one row per level, as a
// synthetic mesh. Vertices carry a position only.
func Grid(levels int) []Level {
	ret := make([]Level, levels)
	for row := 0; row < levels; row++ {
		y0, y1 := float32(row), float32(row+1)
		var blob Blob
		for col := 0; col < levels; col++ {
			x0, x1 := float32(col), float32(col+1)
			base := uint16(len(blob.Vertices) / 3)
			blob.Vertices = append(blob.Vertices,
				x0, y0, 0,
				x1, y0, 0,
				x1, y1, 0,
				x0, y1, 0,
			)
			blob.Indices = append(blob.Indices, base, base+1, base+2, base, base+2, base+3)
		}
		ret[row] = Level{PrecisionLevel: row + 1, Blob: blob}
	}
	return ret
}

// GridHeader is the header template matching Grid.
func GridHeader(name string, levels int) Header {
	return Header{
		Name:       name,
		MaxBound:   [3]float32{float32(levels), float32(levels), 0},
		VertexSize: 3,
		Attributes: []VertexAttribute{{Name: "position", Size: 3}},
	}
}
