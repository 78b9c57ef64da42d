// Read-only span views handed to downstream stages in place of the original span.
package enrich

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEnrichment wraps any failure recovered while building a span view.
	ErrEnrichment = errors.New("span enrichment failed")
	// ErrNilSpan is reported when the pipeline hands OnEnd a nil span.
	ErrNilSpan = errors.New("nil span")
)

// suppressedSpan reports the wrapped span as not sampled, so sampled-only
// export stages skip it. The span itself still reaches them.
type suppressedSpan struct {
	sdktrace.ReadOnlySpan
	sc trace.SpanContext
}

func suppress(s sdktrace.ReadOnlySpan) sdktrace.ReadOnlySpan {
	sc := s.SpanContext()
	return suppressedSpan{
		ReadOnlySpan: s,
		sc:           sc.WithTraceFlags(sc.TraceFlags().WithSampled(false)),
	}
}

func (s suppressedSpan) SpanContext() trace.SpanContext { return s.sc }

// enrichedSpan reports a precomputed attribute set for the wrapped span.
type enrichedSpan struct {
	sdktrace.ReadOnlySpan
	attrs []attribute.KeyValue
}

func (s enrichedSpan) Attributes() []attribute.KeyValue {
	return append([]attribute.KeyValue(nil), s.attrs...)
}
