// Package observe provides persist.Observer implementations for
// production monitoring of storage bindings.
//
// # Prometheus Metrics
//
// The Prometheus observer counts store operations by op and outcome and
// records their duration:
//
//	metrics := observe.NewPrometheus(
//	    observe.WithNamespace("myapp"),
//	)
//	theme := persist.MustBind(scope, store, "theme", "light",
//	    persist.WithObserver(metrics),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
//
// Metrics collected:
//   - localstate_operations_total: operations by op and outcome
//   - localstate_operation_duration_seconds: operation duration by op
//   - localstate_warnings_total: failed operations by op
//
// # OpenTelemetry Tracing
//
// The tracing observer emits one span per operation, timed with the
// operation's own start and duration:
//
//	tracer := observe.NewTracer(observe.WithTracerName("my-app"))
//
// Spans are named "localstate.<op>" and carry the key and outcome. Failed
// operations record the error and set the span status. The tracer comes
// from the global OpenTelemetry provider unless WithTracerProvider is used.
//
// Both observers can be combined with persist.Observers.
package observe
