package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/frptest"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, OTelOption) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return sr, WithTracerProvider(tp)
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetrySpanPerStep(t *testing.T) {
	sr, withTP := newRecorder(t)
	net := frptest.NewNetwork(t, frp.WithMiddleware(OpenTelemetry(withTP, WithIncludeValues(true))))

	src := frp.NewSource[int](net).Named("clicks")
	frptest.Record(net, frp.Trace(net, src.Stream, "clicked"))

	src.Emit(7)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "frp.step clicks", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	network, ok := attrValue(span.Attributes(), "frp.network")
	require.True(t, ok)
	assert.Equal(t, net.Name(), network.AsString())

	emissions, ok := attrValue(span.Attributes(), "frp.emissions")
	require.True(t, ok)
	assert.Equal(t, int64(2), emissions.AsInt64())

	require.Len(t, span.Events(), 1)
	event := span.Events()[0]
	assert.Equal(t, "clicked", event.Name)
	value, ok := attrValue(event.Attributes, "frp.value")
	require.True(t, ok)
	assert.Equal(t, "7", value.AsString())
}

func TestOpenTelemetryRecordsAbort(t *testing.T) {
	sr, withTP := newRecorder(t)
	net := frptest.NewNetwork(t,
		frp.WithMiddleware(OpenTelemetry(withTP)),
		frp.WithBudget(frp.Budget{MaxEmissions: 1}),
	)

	src := frp.NewSource[int](net)
	frptest.Record(net, frp.Map(net, src.Stream, func(v int) int { return v }))

	frptest.ExpectAbort(t, frp.CodeEmissionBudget, func() { src.Emit(1) })

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Description, frp.CodeEmissionBudget)
}

func TestOpenTelemetryFilterAndContext(t *testing.T) {
	sr, withTP := newRecorder(t)

	var sawSpan []bool
	probe := func(step *frp.Step, next func()) {
		sawSpan = append(sawSpan, SpanFromStep(step).SpanContext().IsValid())
		next()
	}
	net := frptest.NewNetwork(t, frp.WithMiddleware(
		OpenTelemetry(withTP, WithStepFilter(func(s *frp.Step) bool { return !s.Deferred })),
		probe,
	))

	src := frp.NewSource[int](net)
	frptest.Record(net, frp.Defer(net, src.Stream))

	src.Emit(1)

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, []bool{true, false}, sawSpan)
	assert.False(t, SpanFromStep(nil).SpanContext().IsValid())
}
