// Package mipchain implements a streamed texture format. Level 0 is the
// smallest mip and the final level is the full resolution image, so a texture
// sharpens as levels arrive. Mips are stored largest first; the format header
// is msgpack encoded and may list the chain in several pixel encodings, of
// which the first preferred one is streamed.
package mipchain
