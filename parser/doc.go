// Package parser drives the level-of-detail state machine of a progressively
// streamed asset.
//
// A Parser owns scheduling state (current, required and pending LOD, busy
// flag, priority) while an injected Format owns the byte layout: it decodes
// the format header, parses LOD payloads and decides which byte window to
// fetch next. The surrounding executor fetches windows and reports back with
// exactly one of LodRequestFetchingComplete, LodRequestFetchingError or
// LodRequestFetchingAborted per LodRequestFetchingBegin.
//
// Every asset starts with a fixed container header:
//
//	offset size field
//	0      4    magic "SLOD"
//	4      1    version (1)
//	5      1    flags (reserved)
//	6      2    format extension id, big-endian
//	8      4    format header length, big-endian
//	12     n    format header
//
// When the format header does not name a linked asset, LOD offsets are
// relative to the first byte after the format header of the same source.
package parser
