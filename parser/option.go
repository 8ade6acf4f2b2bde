package parser

import "github.com/rs/zerolog"

// Resolver maps a linked asset id to the source holding its LOD blobs and the
// offset of the blob section within that source.
type Resolver func(linkedAsset uint32) (source string, baseOffset int64, err error)

// Option configures a Parser.
type Option func(p *Parser)

// WithID sets the asset identifier reported in errors and events.
func WithID(id string) Option {
	return func(p *Parser) { p.id = id }
}

// WithSource sets the handle the container was read from.
func WithSource(source string) Option {
	return func(p *Parser) { p.source = source }
}

// WithRequiredLod sets the initial required level.
func WithRequiredLod(lod int) Option {
	return func(p *Parser) { p.requiredLod = lod }
}

// WithPriority sets the initial requested priority.
func WithPriority(priority float32) Option {
	return func(p *Parser) { p.priority = priority }
}

// WithMode sets the payload parse mode.
func WithMode(mode Mode) Option {
	return func(p *Parser) { p.mode = mode }
}

// WithResolver sets the linked asset resolver.
func WithResolver(resolver Resolver) Option {
	return func(p *Parser) { p.resolver = resolver }
}

// WithFetchingBound overrides the format's request bound.
func WithFetchingBound(fn func(currentLod, requiredLod int, bound FetchingBound) FetchingBound) Option {
	return func(p *Parser) { p.options.FetchingBound = fn }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}
