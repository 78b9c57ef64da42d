package enrich

import sdktrace "go.opentelemetry.io/otel/sdk/trace"

// Pipeline accepts span processors. *sdktrace.TracerProvider satisfies it.
type Pipeline interface {
	RegisterSpanProcessor(sdktrace.SpanProcessor)
}

// Register builds a Processor in front of next and registers it with p, so
// next only ever sees filtered and enriched spans. next must not also be
// registered with p directly.
func Register(p Pipeline, next sdktrace.SpanProcessor, opts ...Option) *Processor {
	proc := New(next, opts...)
	p.RegisterSpanProcessor(proc)
	return proc
}
