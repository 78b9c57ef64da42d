// YAML span fixtures for replaying spans through the enrichment stage offline.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// ErrNoSpans is returned when a fixture file defines no spans.
var ErrNoSpans = errors.New("no spans found")

// File is the top-level YAML document.
type File struct {
	Spans []Span `yaml:"spans"`
}

// Span is one fixture span. Sampled defaults to true.
type Span struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind"`
	Sampled    *bool          `yaml:"sampled,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

var kinds = map[string]trace.SpanKind{
	"unspecified": trace.SpanKindUnspecified,
	"internal": trace.SpanKindInternal,
	"server":   trace.SpanKindServer,
	"client":   trace.SpanKindClient,
	"producer": trace.SpanKindProducer,
	"consumer": trace.SpanKindConsumer,
}

// ParseKind converts a lower-case kind name to a SpanKind.
func ParseKind(s string) (trace.SpanKind, error) {
	k, ok := kinds[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return trace.SpanKindUnspecified, fmt.Errorf("unknown span kind %q, valid kinds: unspecified, internal, server, client, producer, consumer", s)
	}
	return k, nil
}

// Load reads a fixture file in any supported format.
func Load(path string) ([]Span, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied fixture path is expected
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return ParseFormat(data, FormatAuto)
}

// Parse parses fixture YAML and validates every span.
func Parse(data []byte) ([]Span, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	return validate(f.Spans)
}

func (s Span) validate(index int) error {
	if s.Name == "" {
		return fmt.Errorf("span %d: name is required", index)
	}
	if _, err := ParseKind(s.Kind); err != nil {
		return fmt.Errorf("span %q: %w", s.Name, err)
	}
	if _, err := s.attributes(); err != nil {
		return fmt.Errorf("span %q: %w", s.Name, err)
	}
	return nil
}

// IsSampled reports the fixture's sampled flag.
func (s Span) IsSampled() bool {
	return s.Sampled == nil || *s.Sampled
}

// attributes converts the YAML map into typed attributes, sorted by key.
func (s Span) attributes() ([]attribute.KeyValue, error) {
	keys := make([]string, 0, len(s.Attributes))
	for k := range s.Attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := s.Attributes[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(k, v))
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		case bool:
			attrs = append(attrs, attribute.Bool(k, v))
		default:
			return nil, fmt.Errorf("attribute %q: unsupported value type %T", k, v)
		}
	}
	return attrs, nil
}

// Snapshot builds an ended read-only span for the fixture. The index seeds
// deterministic trace and span ids.
func (s Span) Snapshot(index int) (sdktrace.ReadOnlySpan, error) {
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	attrs, err := s.attributes()
	if err != nil {
		return nil, err
	}

	var flags trace.TraceFlags
	if s.IsSampled() {
		flags = trace.FlagsSampled
	}
	id := byte(index + 1)
	start := time.Unix(0, 0).UTC()

	return tracetest.SpanStub{
		Name: s.Name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{id},
			SpanID:     trace.SpanID{id},
			TraceFlags: flags,
		}),
		SpanKind:   kind,
		StartTime:  start,
		EndTime:    start.Add(time.Millisecond),
		Attributes: attrs,
	}.Snapshot(), nil
}
