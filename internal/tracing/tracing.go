// Package tracing wires the tool loop's optional span instrumentation via
// OpenTelemetry, off by default. A TracerProvider is only ever installed
// when an operator configures a collector; otherwise otel's default global
// tracer is already a no-op, so every call site in toolloop can call
// otel.Tracer(...) unconditionally with zero cost when tracing is off.
package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the single instrumentation scope every span in this repo is
// created under.
const TracerName = "github.com/nextlevelbuilder/msgcode"

// Setup installs a global TracerProvider when collectorEndpoint is
// non-empty. No OTLP exporter dependency is wired in
// (go.mod carries otel/sdk/trace only, no exporters/otlp/*), so instead of
// adding one we ship a minimal slog-backed SpanExporter: every exported span
// becomes one structured log line, keeping tracing genuinely optional
// infrastructure rather than a new network dependency. Returns a shutdown
// func that flushes and detaches the provider; always safe to call even
// when tracing was never enabled.
func Setup(ctx context.Context, serviceName, collectorEndpoint string) (shutdown func(context.Context) error, err error) {
	if collectorEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	exporter := &slogExporter{endpoint: collectorEndpoint}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("tracing.enabled", "endpoint", collectorEndpoint)
	return tp.Shutdown, nil
}

// Tracer returns the shared tracer; a no-op implementation when Setup was
// never called (or called with an empty endpoint).
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// slogExporter implements sdktrace.SpanExporter by logging each finished
// span instead of shipping it over OTLP, so `tracing.enabled` behavior is
// observable without an external collector in this environment. A real
// deployment swaps this for an otlptrace exporter pointed at
// collectorEndpoint without touching any toolloop call site.
type slogExporter struct {
	endpoint string
}

func (e *slogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := make(map[string]string, len(s.Attributes()))
		for _, a := range s.Attributes() {
			attrs[string(a.Key)] = a.Value.Emit()
		}
		slog.Info("trace.span",
			"name", s.Name(),
			"traceId", s.SpanContext().TraceID().String(),
			"spanId", s.SpanContext().SpanID().String(),
			"durationMs", s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status", s.Status().Code.String(),
			"attrs", attrs,
		)
	}
	return nil
}

func (e *slogExporter) Shutdown(ctx context.Context) error { return nil }
