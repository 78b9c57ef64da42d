// Span enrichment stage: suppresses internal spans and adds fixed dimensions to the rest.
// Sits in front of an export stage and hands it a view of each ended span.
package enrich

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Keys and placeholder values of the fixed dimensions.
const (
	CustomDimension1 = attribute.Key("CustomDimension1")
	CustomDimension2 = attribute.Key("CustomDimension2")

	ClientIPPlaceholder = "<IP Address>"
	UserIDPlaceholder   = "<User ID>"
)

// DefaultAttributes returns the dimensions added to every non-internal span.
func DefaultAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		CustomDimension1.String("value1"),
		CustomDimension2.String("value2"),
		semconv.HTTPClientIPKey.String(ClientIPPlaceholder),
		semconv.EnduserIDKey.String(UserIDPlaceholder),
	}
}

var _ sdktrace.SpanProcessor = (*Processor)(nil)

// Processor is a SpanProcessor that filters and enriches ended spans before
// passing them to the next stage. It holds no per-span state and is safe for
// concurrent use.
type Processor struct {
	next   sdktrace.SpanProcessor
	attrs  []attribute.KeyValue
	extra  []attribute.KeyValue
	logger *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used to report recovered enrichment failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAttributes adds dimensions on top of DefaultAttributes.
// Keys that collide with a default dimension are ignored.
func WithAttributes(kv ...attribute.KeyValue) Option {
	return func(p *Processor) {
		p.extra = append(p.extra, kv...)
	}
}

// New returns a Processor that forwards to next. A nil next gives a
// standalone stage whose output is discarded.
func New(next sdktrace.SpanProcessor, opts ...Option) *Processor {
	p := &Processor{
		next:   next,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	defaults := DefaultAttributes()
	p.attrs = defaults
	for _, kv := range p.extra {
		if hasKey(defaults, kv.Key) {
			p.logger.Debug("ignoring extra dimension that shadows a fixed one", zap.String("key", string(kv.Key)))
			continue
		}
		p.attrs = upsert(p.attrs, []attribute.KeyValue{kv})
	}
	p.extra = nil
	return p
}

// Attributes returns a copy of the dimensions added to non-internal spans.
func (p *Processor) Attributes() []attribute.KeyValue {
	return append([]attribute.KeyValue(nil), p.attrs...)
}

// OnStart forwards to the next stage. Nothing is added at start because
// the final attributes are only known once the span ends.
func (p *Processor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	if p.next != nil {
		p.next.OnStart(parent, s)
	}
}

// OnEnd applies the filter and forwards the result. It never panics; on
// failure the span is forwarded unchanged.
func (p *Processor) OnEnd(s sdktrace.ReadOnlySpan) {
	if s == nil {
		p.logger.Warn("span enrichment skipped", zap.Error(ErrNilSpan))
		return
	}
	out := p.safeApply(s)
	if p.next != nil {
		p.next.OnEnd(out)
	}
}

// Apply returns the view of s that downstream stages should see.
// Internal spans come back unsampled with their attributes untouched; all
// other kinds come back with the configured dimensions upserted.
func (p *Processor) Apply(s sdktrace.ReadOnlySpan) sdktrace.ReadOnlySpan {
	if s == nil {
		return nil
	}
	if isInternal(s.SpanKind()) {
		return suppress(s)
	}
	return enrichedSpan{
		ReadOnlySpan: s,
		attrs:        upsert(s.Attributes(), p.attrs),
	}
}

func (p *Processor) safeApply(s sdktrace.ReadOnlySpan) (out sdktrace.ReadOnlySpan) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrEnrichment, r)
			p.logger.Error("span enrichment failed", zap.Error(err))
			otel.Handle(err)
			out = s
		}
	}()
	return p.Apply(s)
}

// ForceFlush has nothing of its own to flush; it only drains the next stage.
func (p *Processor) ForceFlush(ctx context.Context) error {
	if p.next == nil {
		return nil
	}
	return p.next.ForceFlush(ctx)
}

// Shutdown has nothing of its own to release; it only shuts down the next stage.
func (p *Processor) Shutdown(ctx context.Context) error {
	if p.next == nil {
		return nil
	}
	return p.next.Shutdown(ctx)
}

// The SDK normalises an unspecified kind to internal when a span starts.
func isInternal(k trace.SpanKind) bool {
	return k == trace.SpanKindInternal || k == trace.SpanKindUnspecified
}

// upsert returns base with add applied: existing keys keep their position
// and take the new value, new keys are appended in order.
func upsert(base, add []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(base), len(base)+len(add))
	copy(out, base)

	index := make(map[attribute.Key]int, len(out)+len(add))
	for i, kv := range out {
		index[kv.Key] = i
	}
	for _, kv := range add {
		if i, ok := index[kv.Key]; ok {
			out[i] = kv
			continue
		}
		index[kv.Key] = len(out)
		out = append(out, kv)
	}
	return out
}

func hasKey(kvs []attribute.KeyValue, k attribute.Key) bool {
	for _, kv := range kvs {
		if kv.Key == k {
			return true
		}
	}
	return false
}
