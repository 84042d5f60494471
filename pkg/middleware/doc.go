// Package middleware provides observability middleware for frp runtimes.
//
// Each middleware wraps a propagation step (frp.Middleware) and is installed
// with frp.WithMiddleware or Runtime.Use.
//
// # OpenTelemetry Middleware
//
// OpenTelemetry opens one span per step. Spans carry the origin node, the
// owning network and whether the step was deferred. Trace node annotations
// become span events.
//
//	rt := frp.NewRuntime(frp.WithMiddleware(
//	    middleware.OpenTelemetry(
//	        middleware.WithTracerName("my-app"),
//	        middleware.WithStepFilter(func(s *frp.Step) bool {
//	            return !s.Deferred
//	        }),
//	    ),
//	))
//
// # Prometheus Metrics
//
// Prometheus counts steps, emissions, purged edges and aborts, and
// observes step duration:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("myapp"))
//	rt := frp.NewRuntime(frp.WithMiddleware(m.Middleware()))
//	http.Handle("/metrics", promhttp.Handler())
//
// # Logging
//
// Logging logs every step at debug level and aborted steps at error
// level, using the runtime's slog logger.
package middleware
