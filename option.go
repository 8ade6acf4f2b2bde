package lodstream

import (
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/lodstream/fetch"
	"github.com/viant/lodstream/job"
	"github.com/viant/lodstream/metrics"
	"github.com/viant/lodstream/parser"
	"github.com/viant/lodstream/service/dao"
	"github.com/viant/lodstream/tracing"
)

// Option configures a Service.
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithFetcher replaces the default afs storage fetcher
func WithFetcher(fetcher fetch.Fetcher) Option {
	return func(s *Service) { s.fetcher = fetcher }
}

// WithLogger sets the logger shared by every component
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithManager shares a host job manager; its budget configuration wins over
// the service configuration.
func WithManager(manager *job.Manager) Option {
	return func(s *Service) { s.manager = manager }
}

// WithMetrics records every tick with collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Service) { s.metrics = collector }
}

// WithFormat registers a format factory for a container extension
func WithFormat(extension uint16, name string, factory FormatFactory) Option {
	return func(s *Service) { s.formats[extension] = formatEntry{name: name, factory: factory} }
}

// WithResolver sets the linked asset resolver handed to every parser
func WithResolver(resolver parser.Resolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithRegistry sets the opened asset registry
func WithRegistry(registry dao.Service[string, Asset]) Option {
	return func(s *Service) { s.assets = registry }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.logger.Warn().Err(err).Msg("tracing disabled")
		}
	}
}

// WithTracingExporter configures OpenTelemetry tracing with a custom exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.logger.Warn().Err(err).Msg("tracing disabled")
		}
	}
}
