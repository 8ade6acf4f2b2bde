// Package pop implements the progressive ordered mesh format. The format
// header is a msgpack encoded Header; every level's blob is a msgpack encoded
// Blob holding the triangles and vertices that level adds. Levels are fetched
// one at a time unless the fetching bound says otherwise, and each parsed
// level is appended to the growing Geometry.
package pop
