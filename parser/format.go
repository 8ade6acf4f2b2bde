package parser

// MaxLodRange is the widest LOD span a single request may cover.
const MaxLodRange = 32

// Metadata is what a format learns from its header.
type Metadata struct {
	// LinkedAsset names the source holding the LOD blobs; 0 means the blobs
	// follow the header in the same source.
	LinkedAsset uint32
	// Name is an optional human readable asset name.
	Name string
	// Attributes carries format specific descriptive values.
	Attributes map[string]string
}

// FetchingBound limits how many levels (MinSize, MaxSize) and how many bytes
// (RequestMinSize, RequestMaxSize) one request may cover. Zero disables a
// limit.
type FetchingBound struct {
	MinSize        int
	MaxSize        int
	RequestMinSize int64
	RequestMaxSize int64
}

// Options is passed to every format hook.
type Options struct {
	// Asset identifies the parsed asset.
	Asset string
	// Source is the handle the container header was read from.
	Source string
	// FetchingBound, when set, overrides the format's default bound.
	FetchingBound func(currentLod, requiredLod int, bound FetchingBound) FetchingBound
}

// Bound applies the FetchingBound override, when present.
func (o *Options) Bound(currentLod, requiredLod int, bound FetchingBound) FetchingBound {
	if o == nil || o.FetchingBound == nil {
		return bound
	}
	return o.FetchingBound(currentLod, requiredLod, bound)
}

// Format owns the byte layout of a streamed asset. Offsets it returns are
// relative to the blob section of its source.
type Format interface {
	// HeaderParsed decodes the format header.
	HeaderParsed(data []byte, options *Options) (Metadata, error)
	// LodParsed decodes the payload covering levels (previousLod, currentLod].
	LodParsed(previousLod, currentLod int, data []byte, options *Options) error
	// Complete reports whether currentLod is the final level.
	Complete(currentLod int) bool
	// Completed is called once, after the final level was parsed.
	Completed()
	// MaxLod returns the highest level.
	MaxLod() int
	// LodLowerBound returns the first existing level >= lod.
	LodLowerBound(lod int) int
	// NextLod returns the level and byte window to fetch after currentLod.
	NextLod(currentLod, requiredLod int) (nextLod int, offset, size int64)
	// LodRangeFetchingBound returns the default request bound.
	LodRangeFetchingBound(currentLod, requiredLod int) FetchingBound
	// LodRangeRequestByteRange returns the byte span of levels [lowerLod, upperLod].
	LodRangeRequestByteRange(lowerLod, upperLod int) (offset, size int64)
}

// Quantifier is implemented by formats able to report how much content a
// parsed window added.
type Quantifier interface {
	LodQuantity(previousLod, currentLod int) int
}

// NextLodInRange computes the next window from the format's bound, lower
// bound and byte range hooks. Formats without a custom policy delegate
// NextLod to it. It returns currentLod and an empty window when nothing needs
// fetching.
func NextLodInRange(format Format, options *Options, currentLod, requiredLod int) (nextLod int, offset, size int64) {
	maxLod := format.MaxLod()
	if requiredLod > maxLod {
		requiredLod = maxLod
	}
	if currentLod >= requiredLod {
		return currentLod, 0, 0
	}
	bound := options.Bound(currentLod, requiredLod, format.LodRangeFetchingBound(currentLod, requiredLod))
	span := requiredLod - currentLod
	if bound.MaxSize > 0 && span > bound.MaxSize {
		span = bound.MaxSize
	}
	if bound.MinSize > 0 && span < bound.MinSize {
		span = bound.MinSize
	}
	lower := format.LodLowerBound(currentLod + 1)
	upper := format.LodLowerBound(min(currentLod+span, maxLod))
	if upper < lower {
		upper = lower
	}
	offset, size = format.LodRangeRequestByteRange(lower, upper)
	if bound.RequestMaxSize > 0 {
		for size > bound.RequestMaxSize && upper > lower {
			candidate := upper
			for lod := upper - 1; lod >= lower; lod-- {
				if candidate = format.LodLowerBound(lod); candidate < upper {
					break
				}
			}
			if candidate >= upper {
				break
			}
			upper = candidate
			offset, size = format.LodRangeRequestByteRange(lower, upper)
		}
	}
	if bound.RequestMinSize > 0 {
		for size < bound.RequestMinSize && upper < maxLod {
			upper = format.LodLowerBound(upper + 1)
			offset, size = format.LodRangeRequestByteRange(lower, upper)
		}
	}
	return upper, offset, size
}
