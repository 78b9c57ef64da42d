// HTTP instrumentation with request filters: incoming OPTIONS requests and
// outgoing requests to the /test path are not traced.
package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

const ignoredOutgoingPath = "/test"

// IncomingFilter reports whether an incoming request should be traced.
func IncomingFilter(r *http.Request) bool {
	return r.Method != http.MethodOptions
}

// OutgoingFilter reports whether an outgoing request should be traced.
func OutgoingFilter(r *http.Request) bool {
	return r.URL == nil || r.URL.Path != ignoredOutgoingPath
}

// NewHandler wraps h with server instrumentation that skips OPTIONS requests.
func NewHandler(h http.Handler, operation string, tp trace.TracerProvider) http.Handler {
	return otelhttp.NewHandler(h, operation,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithFilter(IncomingFilter),
	)
}

// NewTransport wraps base with client instrumentation that skips requests to /test.
// A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, tp trace.TracerProvider) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithFilter(OutgoingFilter),
	)
}
