// SDK provider construction: the enrichment stage is registered in front of the
// trace export stage, and all providers share one resource and one shutdown.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/andrewh/enricher/pkg/enrich"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Providers holds the trace, metric and log providers of one pipeline.
// Disabled signals get no-op providers so callers never need nil checks.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider
	// Enricher is the enrichment stage in front of the trace exporter, nil
	// when traces are disabled.
	Enricher *enrich.Processor
	Resource *resource.Resource

	logger      *zap.Logger
	closers     []shutdownable
	shutdownMu  sync.Mutex
	shutdownErr error
	shutdown    bool
}

// shutdownable is anything with a Shutdown method (TracerProvider, MeterProvider, LoggerProvider).
type shutdownable interface {
	Shutdown(context.Context) error
}

// Setup builds providers for the enabled signals. The trace exporter sits
// behind a batch processor (simple when writing to stdout) with the
// enrichment stage registered in front of it.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger, opts ...enrich.Option) (*Providers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Stdout {
		cfg.Writer = &syncWriter{w: cfg.writer()}
	}

	res, err := NewResource(cfg)
	if err != nil {
		return nil, err
	}

	p := &Providers{
		Resource:       res,
		MeterProvider:  metricnoop.NewMeterProvider(),
		LoggerProvider: lognoop.NewLoggerProvider(),
		logger:         logger,
	}

	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.SamplingRatio)),
	)
	p.closers = append(p.closers, p.TracerProvider)

	if cfg.Enabled(SignalTraces) {
		exporter, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return nil, p.abort(fmt.Errorf("creating trace exporter: %w", err))
		}
		var sp sdktrace.SpanProcessor
		if cfg.Stdout {
			sp = sdktrace.NewSimpleSpanProcessor(exporter)
		} else {
			sp = sdktrace.NewBatchSpanProcessor(exporter)
		}
		opts = append([]enrich.Option{enrich.WithLogger(logger.Named("enrich"))}, opts...)
		p.Enricher = enrich.Register(p.TracerProvider, sp, opts...)
	}

	if cfg.Enabled(SignalMetrics) {
		exporter, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return nil, p.abort(fmt.Errorf("creating metric exporter: %w", err))
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
			sdkmetric.WithResource(res),
		)
		p.MeterProvider = mp
		p.closers = append(p.closers, mp)

		if err := runtime.Start(runtime.WithMeterProvider(mp)); err != nil {
			return nil, p.abort(fmt.Errorf("starting runtime metrics: %w", err))
		}
	}

	if cfg.Enabled(SignalLogs) {
		exporter, err := createLogExporter(ctx, cfg)
		if err != nil {
			return nil, p.abort(fmt.Errorf("creating log exporter: %w", err))
		}
		var processor sdklog.Processor
		if cfg.Stdout {
			processor = sdklog.NewSimpleProcessor(exporter)
		} else {
			processor = sdklog.NewBatchProcessor(exporter)
		}
		lp := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(processor),
			sdklog.WithResource(res),
		)
		p.LoggerProvider = lp
		p.closers = append(p.closers, lp)
	}

	return p, nil
}

// abort shuts down whatever was already built and returns err.
func (p *Providers) abort(err error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = p.Shutdown(ctx)
	return err
}

// SetGlobal installs the providers and a W3C trace-context and baggage
// propagator as the process-wide defaults. Instrumentation that only reads
// the globals needs this.
func (p *Providers) SetGlobal() {
	otel.SetTracerProvider(p.TracerProvider)
	otel.SetMeterProvider(p.MeterProvider)
	global.SetLoggerProvider(p.LoggerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes and shuts down every provider concurrently. Later calls
// return the result of the first.
func (p *Providers) Shutdown(ctx context.Context) error {
	p.shutdownMu.Lock()
	defer p.shutdownMu.Unlock()
	if p.shutdown {
		return p.shutdownErr
	}
	p.shutdown = true
	p.shutdownErr = shutdownAll(ctx, p.closers, p.logger)
	return p.shutdownErr
}

// ShutdownWithTimeout calls Shutdown with a fresh context bounded by the
// default shutdown timeout.
func (p *Providers) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}

// shutdownAll shuts down all items concurrently within the given context.
// Errors are logged individually and joined; a slow item does not block others.
func shutdownAll[S shutdownable](ctx context.Context, items []S, logger *zap.Logger) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, item := range items {
		wg.Go(func() {
			if err := item.Shutdown(ctx); err != nil {
				logger.Warn("error shutting down provider", zap.String("provider", fmt.Sprintf("%T", item)), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
