package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/frp/internal/config"
	"github.com/vango-dev/frp/internal/errors"
	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/middleware"
)

// telemetry holds the observability wiring for one serve run.
type telemetry struct {
	registry   *prometheus.Registry
	middleware []frp.Middleware
	shutdown   []func(context.Context) error
}

// newTelemetry builds step middleware from cfg. stats reads the runtime's
// statistics from a goroutine other than the loop.
func newTelemetry(cfg *config.Config, logger *slog.Logger, traceOut io.Writer, stats func() (frp.Stats, error)) (*telemetry, error) {
	t := &telemetry{}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(cfg, traceOut)
		if err != nil {
			return nil, err
		}
		if tp != nil {
			otel.SetTracerProvider(tp)
			t.shutdown = append(t.shutdown, tp.Shutdown)
		}
		t.middleware = append(t.middleware, middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Tracing.TracerName),
			middleware.WithTracerProvider(otel.GetTracerProvider()),
		))
	}

	if cfg.Metrics.Enabled {
		t.registry = prometheus.NewRegistry()
		t.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts := []middleware.MetricsOption{
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithSubsystem(cfg.Metrics.Subsystem),
			middleware.WithRegistry(t.registry),
		}
		if stats != nil {
			opts = append(opts, middleware.WithStats(stats))
		}
		t.middleware = append(t.middleware, middleware.Prometheus(opts...))
	}

	// Logging is innermost: its duration covers propagation only.
	t.middleware = append(t.middleware, middleware.Logging(logger))
	return t, nil
}

// newTracerProvider returns nil for the "none" exporter, leaving the
// global provider in place.
func newTracerProvider(cfg *config.Config, w io.Writer) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.Tracing.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, errors.New("E302").
			WithDetail(fmt.Sprintf("tracing.exporter %q is not one of none or stdout.", cfg.Tracing.Exporter))
	}

	name := cfg.Name
	if name == "" {
		name = "frp"
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// Shutdown flushes exporters.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var first error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		if err := t.shutdown[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
