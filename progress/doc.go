// Package progress keeps aggregated streaming counters: requests issued and
// settled, bytes loaded, levels parsed and assets completed. Components that
// share a tracker update it through Delta values; observers read snapshots or
// register a change callback.
package progress
