// Instrumented dependency calls that produce client spans for the pipeline.
// Each probe runs under its own internal parent span and reports its outcome
// without stopping the others.
package probe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/andrewh/enricher/probe"

// Probe is one instrumented call against an external dependency.
type Probe interface {
	// Name identifies the probe in results and span names.
	Name() string
	// Do performs the call and returns a short description of the outcome.
	Do(ctx context.Context) (string, error)
}

// Result is the outcome of running one probe.
type Result struct {
	Name     string
	Detail   string
	Duration time.Duration
	Err      error
}

// String renders the result as a single status line.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: error: %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: ok: %s (%s)", r.Name, r.Detail, r.Duration.Round(time.Millisecond))
}

// Runner runs probes under a parent span from its tracer provider.
type Runner struct {
	tracer  trace.Tracer
	logger  *zap.Logger
	timeout time.Duration
}

// NewRunner returns a Runner that traces with tp. A zero timeout means no
// per-probe deadline beyond the caller's context.
func NewRunner(tp trace.TracerProvider, logger *zap.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		tracer:  tp.Tracer(tracerName),
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes the probes in order and returns one result per probe.
func (r *Runner) Run(ctx context.Context, probes ...Probe) []Result {
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		results = append(results, r.runOne(ctx, p))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, p Probe) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ctx, span := r.tracer.Start(ctx, "probe "+p.Name(), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	detail, err := p.Do(ctx)
	res := Result{Name: p.Name(), Detail: detail, Duration: time.Since(start), Err: err}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("probe failed", zap.String("probe", p.Name()), zap.Error(err))
		return res
	}
	r.logger.Debug("probe succeeded",
		zap.String("probe", p.Name()),
		zap.String("detail", detail),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)
	return res
}
