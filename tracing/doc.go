// Package tracing wraps OpenTelemetry so that streaming components can open
// spans around window fetches without importing the SDK directly. Spans are
// no-ops until Init or InitWithExporter installs a provider.
package tracing
