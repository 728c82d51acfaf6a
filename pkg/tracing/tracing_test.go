package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "intake", "external_id", "wamid.1", "dangling")
	End(span, errors.New("boom"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "intake", spans[0].Name())
	require.Len(t, spans[0].Attributes(), 1)
	assert.Equal(t, "wamid.1", spans[0].Attributes()[0].Value.AsString())
	assert.Len(t, spans[0].Events(), 1)
}
