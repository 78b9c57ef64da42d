package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/andrewh/enricher/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// HTTP issues a GET through an instrumented transport.
type HTTP struct {
	URL    string
	client *http.Client
}

// NewHTTP returns an HTTP probe whose client spans go to tp.
func NewHTTP(url string, tp trace.TracerProvider) *HTTP {
	return &HTTP{
		URL:    url,
		client: &http.Client{Transport: telemetry.NewTransport(nil, tp)},
	}
}

func (h *HTTP) Name() string { return "http" }

// Do sends the request and reports the status. Any response counts as a
// successful call; only transport failures are errors.
func (h *HTTP) Do(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", h.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close after draining
	n, _ := io.Copy(io.Discard, resp.Body)
	return fmt.Sprintf("GET %s: %s (%d bytes)", h.URL, resp.Status, n), nil
}
