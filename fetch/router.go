package fetch

import (
	"context"
	"strings"
)

// Router dispatches requests by source scheme, falling back to a default
// fetcher for unrouted schemes and plain paths.
type Router struct {
	routes   map[string]Fetcher
	fallback Fetcher
}

// NewRouter creates a router over fallback.
func NewRouter(fallback Fetcher) *Router {
	return &Router{routes: map[string]Fetcher{}, fallback: fallback}
}

// Route sends sources with scheme (e.g. "s3") to fetcher.
func (r *Router) Route(scheme string, fetcher Fetcher) *Router {
	r.routes[strings.ToLower(scheme)] = fetcher
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, request *Request, progress ProgressFunc, done DoneFunc) {
	if scheme, _, ok := strings.Cut(request.Source, "://"); ok {
		if fetcher, ok := r.routes[strings.ToLower(scheme)]; ok {
			fetcher.Fetch(ctx, request, progress, done)
			return
		}
	}
	if r.fallback == nil {
		done(&Result{Err: ErrNotFound})
		return
	}
	r.fallback.Fetch(ctx, request, progress, done)
}
