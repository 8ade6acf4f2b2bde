package pop

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/viant/lodstream/parser"
)

// Geometry is the mesh assembled from the parsed levels.
type Geometry struct {
	Indices  []uint16
	Vertices []float32
	// AvailableLod is the highest parsed level, -1 before the first one.
	AvailableLod int
}

// Triangles returns the number of assembled triangles.
func (g *Geometry) Triangles() int { return len(g.Indices) / 3 }

// Format streams a progressive ordered mesh.
type Format struct {
	header   Header
	table    *parser.LodTable
	options  *parser.Options
	lods     map[int]Lod
	geometry Geometry
	done     bool
}

// New creates a format instance for one asset.
func New() *Format {
	return &Format{geometry: Geometry{AvailableLod: -1}}
}

// Header returns the decoded header.
func (f *Format) Header() Header { return f.header }

// Geometry returns the mesh assembled so far.
func (f *Format) Geometry() *Geometry { return &f.geometry }

// Done reports whether the final level was parsed.
func (f *Format) Done() bool { return f.done }

func (f *Format) HeaderParsed(data []byte, options *parser.Options) (parser.Metadata, error) {
	var header Header
	if err := msgpack.Unmarshal(data, &header); err != nil {
		return parser.Metadata{}, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if err := header.validate(); err != nil {
		return parser.Metadata{}, err
	}
	table, err := header.table()
	if err != nil {
		return parser.Metadata{}, err
	}
	f.header = header
	f.table = table
	f.options = options
	f.lods = make(map[int]Lod, len(header.Lods))
	for _, lod := range header.Lods {
		f.lods[lod.Level] = lod
	}
	return parser.Metadata{
		LinkedAsset: header.LinkedAsset,
		Name:        header.Name,
		Attributes: map[string]string{
			"levels":     fmt.Sprint(table.Len()),
			"vertexSize": fmt.Sprint(header.VertexSize),
		},
	}, nil
}

// LodParsed decodes the blobs of every level in (previousLod, currentLod] and
// appends them to the geometry. Indices of a level are relative to the
// vertices that level adds.
func (f *Format) LodParsed(previousLod, currentLod int, data []byte, _ *parser.Options) error {
	start := int64(-1)
	for _, info := range f.table.Levels() {
		if info.Level <= previousLod || info.Level > currentLod {
			continue
		}
		if start < 0 {
			start = info.ByteOffset
		}
		from, to := info.ByteOffset-start, info.End()-start
		if to > int64(len(data)) {
			return fmt.Errorf("%w: level %d needs %d bytes, got %d", ErrInvalidBlob, info.Level, to, len(data))
		}
		var blob Blob
		if err := msgpack.Unmarshal(data[from:to], &blob); err != nil {
			return fmt.Errorf("%w: level %d: %v", ErrInvalidBlob, info.Level, err)
		}
		if err := f.append(f.lods[info.Level], &blob); err != nil {
			return err
		}
	}
	f.geometry.AvailableLod = currentLod
	return nil
}

func (f *Format) append(lod Lod, blob *Blob) error {
	vertexSize := f.header.VertexSize
	if len(blob.Indices) != lod.IndexCount || len(blob.Vertices) != lod.VertexCount*vertexSize {
		return fmt.Errorf("%w: level %d has %d indices and %d floats, want %d and %d",
			ErrInvalidBlob, lod.Level, len(blob.Indices), len(blob.Vertices), lod.IndexCount, lod.VertexCount*vertexSize)
	}
	base := len(f.geometry.Vertices) / vertexSize
	for _, index := range blob.Indices {
		if int(index) >= lod.VertexCount {
			return fmt.Errorf("%w: level %d index %d out of %d vertices", ErrInvalidBlob, lod.Level, index, lod.VertexCount)
		}
		f.geometry.Indices = append(f.geometry.Indices, uint16(base+int(index)))
	}
	f.geometry.Vertices = append(f.geometry.Vertices, blob.Vertices...)
	return nil
}

func (f *Format) Complete(currentLod int) bool { return currentLod >= f.table.MaxLevel() }
func (f *Format) Completed()                   { f.done = true }
func (f *Format) MaxLod() int                  { return f.table.MaxLevel() }
func (f *Format) LodLowerBound(lod int) int    { return f.table.LowerBound(lod) }

// NextLod fetches one level per request by default.
func (f *Format) NextLod(currentLod, requiredLod int) (int, int64, int64) {
	return parser.NextLodInRange(f, f.options, currentLod, requiredLod)
}

func (f *Format) LodRangeFetchingBound(int, int) parser.FetchingBound {
	return parser.FetchingBound{MaxSize: 1}
}

func (f *Format) LodRangeRequestByteRange(lowerLod, upperLod int) (int64, int64) {
	return f.table.ByteRange(lowerLod, upperLod)
}

// LodQuantity returns the triangles added by levels (previousLod, currentLod].
func (f *Format) LodQuantity(previousLod, currentLod int) int {
	return f.table.Quantity(previousLod, currentLod)
}

var (
	_ parser.Format     = (*Format)(nil)
	_ parser.Quantifier = (*Format)(nil)
)
