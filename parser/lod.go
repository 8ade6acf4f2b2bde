package parser

import (
	"fmt"
	"sort"
)

// LodInfo describes one level of detail. It is produced once when the header
// is parsed and never changes afterwards.
type LodInfo struct {
	Level      int   `msgpack:"level" json:"level"`
	ByteOffset int64 `msgpack:"offset" json:"byteOffset"`
	ByteLength int64 `msgpack:"length" json:"byteLength"`
	// Quantity is the amount of primitives, texels or other units this level adds.
	Quantity int `msgpack:"quantity" json:"quantity"`
}

// End returns the offset right after the level's blob.
func (l LodInfo) End() int64 { return l.ByteOffset + l.ByteLength }

// LodTable is an immutable, level-ordered set of LodInfo.
type LodTable struct {
	levels []LodInfo
}

// NewLodTable validates levels and returns them as a table ordered by level.
// Levels must be unique and non-negative, blobs non-empty and non-overlapping,
// and blob offsets must grow with the level.
func NewLodTable(levels []LodInfo) (*LodTable, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: no levels", ErrInvalidLodTable)
	}
	sorted := make([]LodInfo, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	for i, info := range sorted {
		if info.Level < 0 {
			return nil, fmt.Errorf("%w: negative level %d", ErrInvalidLodTable, info.Level)
		}
		if info.ByteOffset < 0 || info.ByteLength <= 0 {
			return nil, fmt.Errorf("%w: level %d has range [%d,+%d)", ErrInvalidLodTable, info.Level, info.ByteOffset, info.ByteLength)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if prev.Level == info.Level {
			return nil, fmt.Errorf("%w: duplicate level %d", ErrInvalidLodTable, info.Level)
		}
		if info.ByteOffset < prev.End() {
			return nil, fmt.Errorf("%w: level %d overlaps level %d", ErrInvalidLodTable, info.Level, prev.Level)
		}
	}
	return &LodTable{levels: sorted}, nil
}

// Len returns the number of levels.
func (t *LodTable) Len() int { return len(t.levels) }

// Levels returns a copy of the ordered levels.
func (t *LodTable) Levels() []LodInfo {
	ret := make([]LodInfo, len(t.levels))
	copy(ret, t.levels)
	return ret
}

// Get returns the info of an exact level.
func (t *LodTable) Get(level int) (LodInfo, bool) {
	i := t.search(level)
	if i < len(t.levels) && t.levels[i].Level == level {
		return t.levels[i], true
	}
	return LodInfo{}, false
}

// MaxLevel returns the highest level.
func (t *LodTable) MaxLevel() int { return t.levels[len(t.levels)-1].Level }

// LowerBound returns the smallest level >= lod, or the highest level when lod
// exceeds it.
func (t *LodTable) LowerBound(lod int) int {
	i := t.search(lod)
	if i == len(t.levels) {
		return t.MaxLevel()
	}
	return t.levels[i].Level
}

// ByteRange returns the contiguous byte span covering every level in
// [lower, upper].
func (t *LodTable) ByteRange(lower, upper int) (offset, size int64) {
	from := t.search(lower)
	to := t.search(upper + 1)
	if from >= to {
		return 0, 0
	}
	offset = t.levels[from].ByteOffset
	return offset, t.levels[to-1].End() - offset
}

// Quantity sums the quantity of every level in (previous, current].
func (t *LodTable) Quantity(previous, current int) int {
	ret := 0
	for _, info := range t.levels {
		if info.Level > previous && info.Level <= current {
			ret += info.Quantity
		}
	}
	return ret
}

func (t *LodTable) search(level int) int {
	return sort.Search(len(t.levels), func(i int) bool { return t.levels[i].Level >= level })
}
