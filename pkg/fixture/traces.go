// Fixture parsers for exported trace JSON
// Handles both stdouttrace (line-delimited JSON) and OTLP protobuf JSON formats
package fixture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// Format identifies the input fixture format.
type Format string

const (
	FormatAuto        Format = "auto"
	FormatYAML        Format = "yaml"
	FormatStdouttrace Format = "stdouttrace"
	FormatOTLP        Format = "otlp"
)

// ParseFormat parses fixture data in the given format. FormatAuto treats
// input that starts with '{' as exported trace JSON and everything else as YAML.
func ParseFormat(data []byte, format Format) ([]Span, error) {
	data = bytes.TrimSpace(data)
	if format == FormatAuto {
		format = FormatYAML
		if bytes.HasPrefix(data, []byte("{")) {
			var err error
			if format, err = detectFormat(data); err != nil {
				return nil, err
			}
		}
	}

	switch format {
	case FormatYAML:
		return Parse(data)
	case FormatStdouttrace:
		return parseStdouttrace(data)
	case FormatOTLP:
		return parseOTLP(data)
	default:
		return nil, fmt.Errorf("unknown format %q, valid formats: auto, yaml, stdouttrace, otlp", format)
	}
}

// detectFormat tries the first line (line-delimited stdouttrace), then the
// full input (pretty-printed OTLP JSON).
func detectFormat(data []byte) (Format, error) {
	firstLine, _, hasMore := bytes.Cut(data, []byte{'\n'})

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(firstLine), &probe); err == nil {
		if _, ok := probe["SpanContext"]; ok {
			return FormatStdouttrace, nil
		}
		if _, ok := probe["resourceSpans"]; ok {
			return FormatOTLP, nil
		}
	}

	if hasMore {
		if err := json.Unmarshal(data, &probe); err == nil {
			if _, ok := probe["resourceSpans"]; ok {
				return FormatOTLP, nil
			}
			if _, ok := probe["SpanContext"]; ok {
				return FormatStdouttrace, nil
			}
		}
	}

	return "", errors.New("cannot detect format: input has neither SpanContext (stdouttrace) nor resourceSpans (OTLP)")
}

// stdouttraceSpan mirrors the fields of the Go SDK's stdouttrace output that
// the enrichment stage looks at.
type stdouttraceSpan struct {
	Name        string `json:"Name"`
	SpanContext struct {
		TraceFlags string `json:"TraceFlags"`
	} `json:"SpanContext"`
	SpanKind   int `json:"SpanKind"`
	Attributes []struct {
		Key   string `json:"Key"`
		Value struct {
			Type  string `json:"Type"`
			Value any    `json:"Value"`
		} `json:"Value"`
	} `json:"Attributes"`
}

// stdouttraceKinds maps trace.SpanKind's integer encoding to fixture kind names.
var stdouttraceKinds = []string{"unspecified", "internal", "server", "client", "producer", "consumer"}

func parseStdouttrace(data []byte) ([]Span, error) {
	var spans []Span
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var evt stdouttraceSpan
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if evt.SpanKind < 0 || evt.SpanKind >= len(stdouttraceKinds) {
			return nil, fmt.Errorf("line %d: unknown span kind %d", lineNum, evt.SpanKind)
		}

		attrs := make(map[string]any, len(evt.Attributes))
		for _, a := range evt.Attributes {
			attrs[a.Key] = stdouttraceValue(a.Value.Type, a.Value.Value)
		}
		flags, err := strconv.ParseUint(evt.SpanContext.TraceFlags, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("line %d: trace flags %q: %w", lineNum, evt.SpanContext.TraceFlags, err)
		}
		sampled := flags&1 == 1

		spans = append(spans, Span{
			Name:       evt.Name,
			Kind:       stdouttraceKinds[evt.SpanKind],
			Sampled:    &sampled,
			Attributes: attrs,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return validate(spans)
}

// stdouttraceValue restores the attribute type lost in JSON decoding.
func stdouttraceValue(typ string, v any) any {
	switch typ {
	case "INT64":
		if f, ok := v.(float64); ok {
			return int(f)
		}
	case "STRING", "BOOL", "FLOAT64":
		return v
	}
	return fmt.Sprint(v)
}

var otlpKinds = map[tracepb.Span_SpanKind]string{
	tracepb.Span_SPAN_KIND_UNSPECIFIED: "unspecified",
	tracepb.Span_SPAN_KIND_INTERNAL:    "internal",
	tracepb.Span_SPAN_KIND_SERVER:      "server",
	tracepb.Span_SPAN_KIND_CLIENT:      "client",
	tracepb.Span_SPAN_KIND_PRODUCER:    "producer",
	tracepb.Span_SPAN_KIND_CONSUMER:    "consumer",
}

func parseOTLP(data []byte) ([]Span, error) {
	var req coltracepb.ExportTraceServiceRequest
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing OTLP: %w", err)
	}

	var spans []Span
	for _, rs := range req.ResourceSpans {
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				kind, ok := otlpKinds[span.Kind]
				if !ok {
					return nil, fmt.Errorf("span %q: unknown span kind %d", span.Name, span.Kind)
				}

				attrs := make(map[string]any, len(span.Attributes))
				for _, a := range span.Attributes {
					attrs[a.Key] = otlpValue(a.Value)
				}

				// Exporters leave flags unset on spans they export, which are sampled.
				sampled := span.Flags == 0 || span.Flags&uint32(tracepb.SpanFlags_SPAN_FLAGS_TRACE_FLAGS_MASK)&1 == 1

				spans = append(spans, Span{
					Name:       span.Name,
					Kind:       kind,
					Sampled:    &sampled,
					Attributes: attrs,
				})
			}
		}
	}
	return validate(spans)
}

// otlpValue converts scalar AnyValues to fixture values and stringifies the rest.
func otlpValue(v *commonpb.AnyValue) any {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_IntValue:
		return int(x.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return x.DoubleValue
	case *commonpb.AnyValue_BoolValue:
		return x.BoolValue
	case nil:
		return ""
	default:
		return protojson.Format(v)
	}
}

func validate(spans []Span) ([]Span, error) {
	if len(spans) == 0 {
		return nil, ErrNoSpans
	}
	for i, s := range spans {
		if err := s.validate(i); err != nil {
			return nil, err
		}
	}
	return spans, nil
}
