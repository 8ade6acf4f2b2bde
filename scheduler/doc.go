// Package scheduler decides which streamed asset parsers get to fetch their
// next LOD window. The Scheduler is itself a job.Job: every step it delivers
// fetch results that arrived since the previous step, aborts requests that
// lost their relevance and issues new requests for the highest-priority
// runnable parsers, never keeping more than MaxNumActiveParsers in flight.
//
// Fetch callbacks may run on any goroutine. With MarshalResults enabled they
// are queued and applied on the thread driving Step; otherwise the fetcher
// must invoke them on that thread.
package scheduler
