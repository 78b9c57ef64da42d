// Property-based tests for the enrichment stage using pgregory.net/rapid
// Covers suppression, enrichment, and idempotence over arbitrary spans
package enrich

import (
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"pgregory.net/rapid"
)

var genKind = rapid.SampledFrom([]trace.SpanKind{
	trace.SpanKindInternal,
	trace.SpanKindServer,
	trace.SpanKindClient,
	trace.SpanKindProducer,
	trace.SpanKindConsumer,
})

// genAttrs draws a duplicate-free attribute list. The key pool overlaps the
// fixed dimensions so overwrites are exercised.
func genAttrs(t *rapid.T) []attribute.KeyValue {
	pool := []string{"CustomDimension1", "CustomDimension2", "http.client_ip", "enduser.id", "key", "db.system", "retries"}
	perm := rapid.Permutation(pool).Draw(t, "perm")
	keys := perm[:rapid.IntRange(0, len(pool)).Draw(t, "nkeys")]

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for i, k := range keys {
		switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("type%d", i)) {
		case 0:
			attrs = append(attrs, attribute.String(k, rapid.String().Draw(t, fmt.Sprintf("s%d", i))))
		case 1:
			attrs = append(attrs, attribute.Int64(k, rapid.Int64().Draw(t, fmt.Sprintf("i%d", i))))
		default:
			attrs = append(attrs, attribute.Bool(k, rapid.Bool().Draw(t, fmt.Sprintf("b%d", i))))
		}
	}
	return attrs
}

var genExternalKind = rapid.SampledFrom([]trace.SpanKind{
	trace.SpanKindServer,
	trace.SpanKindClient,
	trace.SpanKindProducer,
	trace.SpanKindConsumer,
})

func genSpan(t *rapid.T, kinds *rapid.Generator[trace.SpanKind]) sdktrace.ReadOnlySpan {
	kind := kinds.Draw(t, "kind")
	sampled := rapid.Bool().Draw(t, "sampled")
	return stubSpan(kind, sampled, genAttrs(t)...)
}

func TestPropertyInternalSuppressed(t *testing.T) {
	p := New(nil)
	rapid.Check(t, func(t *rapid.T) {
		in := genSpan(t, rapid.Just(trace.SpanKindInternal))
		out := p.Apply(in)
		if out.SpanContext().IsSampled() {
			t.Fatal("internal span still sampled")
		}
		if len(out.Attributes()) != len(in.Attributes()) {
			t.Fatalf("internal span attributes changed: %v -> %v", in.Attributes(), out.Attributes())
		}
	})
}

func TestPropertyNonInternalEnriched(t *testing.T) {
	p := New(nil)
	rapid.Check(t, func(t *rapid.T) {
		in := genSpan(t, genExternalKind)
		out := p.Apply(in)

		if out.SpanContext().IsSampled() != in.SpanContext().IsSampled() {
			t.Fatal("sampled flag changed")
		}
		got := attrMap(out.Attributes())
		for _, kv := range DefaultAttributes() {
			if got[kv.Key] != kv.Value {
				t.Fatalf("%s = %v, want %v", kv.Key, got[kv.Key].Emit(), kv.Value.Emit())
			}
		}
		// Every original key survives; only the fixed keys change value.
		for _, kv := range in.Attributes() {
			v, ok := got[kv.Key]
			if !ok {
				t.Fatalf("lost attribute %s", kv.Key)
			}
			if !hasKey(DefaultAttributes(), kv.Key) && v != kv.Value {
				t.Fatalf("attribute %s changed", kv.Key)
			}
		}
		if len(out.Attributes()) != len(got) {
			t.Fatal("duplicate keys in output")
		}
	})
}

func TestPropertyIdempotent(t *testing.T) {
	p := New(nil)
	rapid.Check(t, func(t *rapid.T) {
		in := genSpan(t, genKind)
		once := p.Apply(in)
		twice := p.Apply(once)

		if !once.SpanContext().Equal(twice.SpanContext()) {
			t.Fatal("span context differs after second application")
		}
		a, b := once.Attributes(), twice.Attributes()
		if len(a) != len(b) {
			t.Fatalf("attribute count differs: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("attribute %d differs: %v vs %v", i, a[i], b[i])
			}
		}
	})
}
