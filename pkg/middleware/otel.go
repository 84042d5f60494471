package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/frp/pkg/frp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for frp runtimes.
const defaultTracerName = "github.com/vango-dev/frp"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// TracerProvider supplies the tracer. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// IncludeValues records annotation payloads as event attributes.
	// Payloads may contain user data; disabled by default.
	IncludeValues bool

	// Filter determines which steps to trace.
	// Return true to trace the step, false to skip.
	// If nil, all steps are traced.
	Filter func(step *frp.Step) bool

	// AttributeExtractor extracts custom attributes from the step.
	// Called before the step runs.
	AttributeExtractor func(step *frp.Step) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider the tracer is taken from.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeValues enables recording annotation payloads.
func WithIncludeValues(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeValues = include
	}
}

// WithStepFilter sets a filter function for steps.
func WithStepFilter(filter func(step *frp.Step) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(step *frp.Step) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every propagation step.
//
// The middleware:
//   - Creates a span per step named after the origin node
//   - Stores the span in step.Context for later middleware and Trace nodes
//   - Records Trace annotations as span events
//   - Records emission, purge and scheduling counts as span attributes
//   - Records aborts as errors and lets the panic continue
//
// Example:
//
//	rt := frp.NewRuntime(frp.WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("my-app")),
//	))
//
// Without WithTracerProvider the tracer comes from the global provider.
// Configure it in main() before building the runtime:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) frp.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	tp := config.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(config.TracerName)

	return func(step *frp.Step, next func()) {
		if config.Filter != nil && !config.Filter(step) {
			next()
			return
		}

		attrs := []attribute.KeyValue{
			attribute.Int64("frp.step.seq", int64(step.Seq)),
			attribute.String("frp.origin", step.Origin.String()),
			attribute.String("frp.origin_label", step.OriginLabel),
			attribute.String("frp.network", step.Network),
			attribute.Bool("frp.deferred", step.Deferred),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(step)...)
		}

		parent := step.Context
		if parent == nil {
			parent = context.Background()
		}
		ctx, span := tracer.Start(parent, spanName(step),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		step.Context = ctx

		completed := false
		defer func() {
			for _, a := range step.Annotations {
				span.AddEvent(a.Message, trace.WithAttributes(annotationAttrs(a, config.IncludeValues)...))
			}
			span.SetAttributes(
				attribute.Int("frp.emissions", step.Emissions),
				attribute.Int("frp.purged", step.Purged),
				attribute.Int("frp.scheduled", step.Scheduled),
			)

			if !completed {
				r := recover()
				err := panicError(r)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
				panic(r)
			}
			span.SetStatus(codes.Ok, "")
			span.End()
		}()

		next()
		completed = true
	}
}

// SpanFromStep returns the span the middleware opened for step, or a
// non-recording span when the step is not traced.
func SpanFromStep(step *frp.Step) trace.Span {
	if step == nil || step.Context == nil {
		return trace.SpanFromContext(context.Background())
	}
	return trace.SpanFromContext(step.Context)
}

func spanName(step *frp.Step) string {
	if step.OriginLabel != "" {
		return "frp.step " + step.OriginLabel
	}
	return "frp.step " + step.Origin.String()
}

func annotationAttrs(a frp.Annotation, includeValue bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("frp.node", a.Node.String()),
		attribute.String("frp.node_label", a.Label),
	}
	if includeValue {
		attrs = append(attrs, attribute.String("frp.value", fmt.Sprintf("%v", a.Value)))
	}
	return attrs
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
