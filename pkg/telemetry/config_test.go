// Tests for pipeline configuration, resource and sampler
package telemetry

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestParseSignals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    map[string]bool
		wantErr bool
	}{
		{name: "single", input: "traces", want: map[string]bool{"traces": true}},
		{name: "all with spaces", input: "traces, metrics ,logs", want: map[string]bool{"traces": true, "metrics": true, "logs": true}},
		{name: "empty entries", input: ",traces,,", want: map[string]bool{"traces": true}},
		{name: "empty", input: "", want: map[string]bool{}},
		{name: "unknown", input: "traces,profiles", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSignals(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownSignal)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
		errIs  error
		errMsg string
	}{
		{name: "bad protocol", modify: func(c *Config) { c.Protocol = "udp" }, errIs: ErrUnsupportedProtocol},
		{name: "bad signal", modify: func(c *Config) { c.Signals = "spans" }, errIs: ErrUnknownSignal},
		{name: "ratio too high", modify: func(c *Config) { c.SamplingRatio = 1.5 }, errMsg: "sampling ratio"},
		{name: "ratio negative", modify: func(c *Config) { c.SamplingRatio = -0.1 }, errMsg: "sampling ratio"},
		{name: "no service name", modify: func(c *Config) { c.ServiceName = "" }, errMsg: "service name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.errIs != nil {
				assert.ErrorIs(t, err, tt.errIs)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestConfigEnabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Signals = "traces,logs"
	assert.True(t, cfg.Enabled(SignalTraces))
	assert.True(t, cfg.Enabled(SignalLogs))
	assert.False(t, cfg.Enabled(SignalMetrics))

	cfg.Signals = "bogus"
	assert.False(t, cfg.Enabled(SignalTraces))
}

func TestCheckEndpoint(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	assert.NoError(t, CheckEndpoint(ln.Addr().String(), ProtocolHTTP))

	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	err = CheckEndpoint(addr, ProtocolGRPC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach OTLP collector at "+addr)
	assert.Contains(t, err.Error(), "--stdout")
}

func resourceAttr(t *testing.T, attrs []attribute.KeyValue, key string) string {
	t.Helper()
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	t.Fatalf("resource attribute %s not found", key)
	return ""
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	res, err := NewResource(DefaultConfig())
	require.NoError(t, err)

	attrs := res.Attributes()
	assert.Equal(t, "my-helloworld-service", resourceAttr(t, attrs, "service.name"))
	assert.Equal(t, "my-namespace", resourceAttr(t, attrs, "service.namespace"))
	assert.Equal(t, "my-instance", resourceAttr(t, attrs, "service.instance.id"))
	assert.Equal(t, "dev", resourceAttr(t, attrs, "service.version"))
	assert.Equal(t, "go", resourceAttr(t, attrs, "telemetry.sdk.language"))
}

func TestNewResourceGeneratesInstanceID(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ServiceInstanceID = ""

	a, err := NewResource(cfg)
	require.NoError(t, err)
	b, err := NewResource(cfg)
	require.NoError(t, err)

	idA := resourceAttr(t, a.Attributes(), "service.instance.id")
	idB := resourceAttr(t, b.Attributes(), "service.instance.id")
	assert.Len(t, idA, 36)
	assert.NotEqual(t, idA, idB)
}

func TestNewSampler(t *testing.T) {
	t.Parallel()

	assert.Contains(t, NewSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, NewSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, NewSampler(0).Description(), "ParentBased")
}
