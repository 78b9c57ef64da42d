// Pipeline configuration: exporter target, enabled signals, sampling and resource identity.
package telemetry

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Signal names accepted by ParseSignals.
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
	SignalLogs    = "logs"
)

// Protocol names accepted by Validate.
const (
	ProtocolHTTP = "http/protobuf"
	ProtocolGRPC = "grpc"
)

// Defaults for the resource identity and sampling.
const (
	DefaultServiceName      = "my-helloworld-service"
	DefaultServiceNamespace = "my-namespace"
	DefaultServiceInstance  = "my-instance"
	DefaultSamplingRatio    = 1.0
)

const (
	shutdownTimeout     = 5 * time.Second
	connectCheckTimeout = 2 * time.Second
	defaultHTTPPort     = "4318"
	defaultGRPCPort     = "4317"
)

var (
	// ErrUnsupportedProtocol is returned for an OTLP protocol other than http/protobuf or grpc.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	// ErrUnknownSignal is returned by ParseSignals for an unrecognised signal name.
	ErrUnknownSignal = errors.New("unknown signal")
)

// Config describes how the telemetry pipeline is built.
type Config struct {
	// Endpoint is the OTLP collector address. Empty uses the exporter default.
	Endpoint string
	// Protocol is http/protobuf or grpc.
	Protocol string
	// Stdout emits signals as JSON to Writer instead of OTLP.
	Stdout bool
	// Writer receives stdout output. Nil means os.Stdout.
	Writer io.Writer
	// Signals is the comma-separated set of enabled signals.
	Signals string
	// SamplingRatio is the fraction of root traces sampled, in [0, 1].
	SamplingRatio float64

	ServiceName       string
	ServiceNamespace  string
	ServiceInstanceID string
	Version           string
}

// DefaultConfig returns a Config that sends traces over OTLP/HTTP with every
// trace sampled.
func DefaultConfig() Config {
	return Config{
		Protocol:          ProtocolHTTP,
		Signals:           SignalTraces,
		SamplingRatio:     DefaultSamplingRatio,
		ServiceName:       DefaultServiceName,
		ServiceNamespace:  DefaultServiceNamespace,
		ServiceInstanceID: DefaultServiceInstance,
		Version:           "dev",
	}
}

var validSignals = map[string]bool{
	SignalTraces:  true,
	SignalMetrics: true,
	SignalLogs:    true,
}

var validProtocols = map[string]bool{
	ProtocolHTTP: true,
	ProtocolGRPC: true,
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := validateProtocol(c.Protocol); err != nil {
		return err
	}
	if _, err := ParseSignals(c.Signals); err != nil {
		return err
	}
	if c.SamplingRatio < 0 || c.SamplingRatio > 1 {
		return fmt.Errorf("sampling ratio must be between 0 and 1, got %v", c.SamplingRatio)
	}
	if c.ServiceName == "" {
		return errors.New("service name must not be empty")
	}
	return nil
}

// Enabled reports whether the named signal is enabled. Invalid signal lists
// enable nothing.
func (c Config) Enabled(signal string) bool {
	set, err := ParseSignals(c.Signals)
	if err != nil {
		return false
	}
	return set[signal]
}

func validateProtocol(p string) error {
	if !validProtocols[p] {
		return fmt.Errorf("%w %q, supported: http/protobuf, grpc", ErrUnsupportedProtocol, p)
	}
	return nil
}

// ParseSignals parses a comma-separated signal list into a set.
func ParseSignals(s string) (map[string]bool, error) {
	set := make(map[string]bool)
	for _, sig := range strings.Split(s, ",") {
		sig = strings.TrimSpace(sig)
		if sig == "" {
			continue
		}
		if !validSignals[sig] {
			return nil, fmt.Errorf("%w %q, valid signals: traces, metrics, logs", ErrUnknownSignal, sig)
		}
		set[sig] = true
	}
	return set, nil
}

// CheckEndpoint dials the collector to fail fast with a helpful message
// before any exporter is built.
func CheckEndpoint(endpoint, protocol string) error {
	port := defaultHTTPPort
	if protocol == ProtocolGRPC {
		port = defaultGRPCPort
	}

	host := endpoint
	if host == "" {
		host = "localhost:" + port
	} else if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, port)
	}

	conn, err := net.DialTimeout("tcp", host, connectCheckTimeout)
	if err != nil {
		return fmt.Errorf("cannot reach OTLP collector at %s\n\n"+
			"To emit signals as JSON to the terminal, use --stdout.\n"+
			"To send to a specific collector, use --endpoint, e.g.\n"+
			"  --endpoint collector.example.com:4318", host)
	}
	_ = conn.Close()
	return nil
}
