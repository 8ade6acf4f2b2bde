package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("lodstream", "test", exporter))

	ctx, parent := StartSpan(context.Background(), "tick", KindInternal)
	_, ok := SpanFromContext(ctx)
	assert.True(t, ok)

	_, child := StartSpan(ctx, "fetch", KindClient)
	child.WithWindow("mem://asset", 2, 250, 150).AddEvent("progress")
	EndSpan(child, errors.New("boom"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	fetch := spans[0]
	assert.Equal(t, "fetch", fetch.Name)
	assert.Equal(t, codes.Error, fetch.Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), fetch.Parent.SpanID())
	assert.Contains(t, fetch.Attributes, attribute.Int64("lod.offset", 250))
	assert.Contains(t, fetch.Attributes, attribute.Int("lod.level", 2))
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	require.NoError(t, Shutdown(context.Background()))
	assert.NoError(t, Shutdown(context.Background()))
	_, late := StartSpan(context.Background(), "late", KindInternal)
	EndSpan(late, nil)
	assert.Empty(t, exporter.GetSpans())
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.Nil(t, span.WithAttributes(map[string]string{"k": "v"}))
	span.SetStatus(nil)
	EndSpan(span, nil)
	ctx := WithSpan(context.Background(), span)
	_, ok := SpanFromContext(ctx)
	assert.False(t, ok)
}
