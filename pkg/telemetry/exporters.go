// Exporter construction for each signal: stdout JSON or OTLP over HTTP or gRPC.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func (c Config) writer() io.Writer {
	if c.Writer != nil {
		return c.Writer
	}
	return os.Stdout
}

// syncWriter serialises writes from exporters sharing one output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func createTraceExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Stdout {
		return stdouttrace.New(stdouttrace.WithWriter(cfg.writer()))
	}
	switch cfg.Protocol {
	case ProtocolGRPC:
		var grpcOpts []otlptracegrpc.Option
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, grpcOpts...)
	case ProtocolHTTP, "":
		var httpOpts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, httpOpts...)
	default:
		return nil, fmt.Errorf("%w %q for traces", ErrUnsupportedProtocol, cfg.Protocol)
	}
}

func createMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	if cfg.Stdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(cfg.writer()))
	}
	switch cfg.Protocol {
	case ProtocolGRPC:
		var grpcOpts []otlpmetricgrpc.Option
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, grpcOpts...)
	case ProtocolHTTP, "":
		var httpOpts []otlpmetrichttp.Option
		if cfg.Endpoint != "" {
			httpOpts = append(httpOpts, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, httpOpts...)
	default:
		return nil, fmt.Errorf("%w %q for metrics", ErrUnsupportedProtocol, cfg.Protocol)
	}
}

func createLogExporter(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	if cfg.Stdout {
		return stdoutlog.New(stdoutlog.WithWriter(cfg.writer()))
	}
	switch cfg.Protocol {
	case ProtocolGRPC:
		var grpcOpts []otlploggrpc.Option
		if cfg.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlploggrpc.WithEndpoint(cfg.Endpoint), otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, grpcOpts...)
	case ProtocolHTTP, "":
		var httpOpts []otlploghttp.Option
		if cfg.Endpoint != "" {
			httpOpts = append(httpOpts, otlploghttp.WithEndpoint(cfg.Endpoint), otlploghttp.WithInsecure())
		}
		return otlploghttp.New(ctx, httpOpts...)
	default:
		return nil, fmt.Errorf("%w %q for logs", ErrUnsupportedProtocol, cfg.Protocol)
	}
}
