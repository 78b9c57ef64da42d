package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/andrewh/enricher/pkg/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/andrewh/enricher/cmd/enricher"

func emitCmd(v *viper.Viper) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Emit sample traces through the enrichment pipeline",
		Long: "Emit sample traces through the enrichment pipeline.\n\n" +
			"Each trace has a server root span with an internal child, which is\n" +
			"suppressed, and a client child, which is enriched. The custom log\n" +
			"event is sent once and the manual counter is incremented per trace.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(cmd, v, count)
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "number of sample traces to emit")

	return cmd
}

// emitStats summarises what emit sent into the pipeline.
type emitStats struct {
	Traces   int `json:"traces"`
	Spans    int `json:"spans"`
	Internal int `json:"internal"`
}

func runEmit(cmd *cobra.Command, v *viper.Viper, count int) error {
	if count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", count)
	}

	s, err := startSession(cmd, v)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := telemetry.NewEvents(s.providers.MeterProvider, s.providers.LoggerProvider)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer := s.providers.TracerProvider.Tracer(tracerName)
	var stats emitStats
	for range count {
		if ctx.Err() != nil {
			break
		}
		emitSampleTrace(ctx, tracer, s.logger, &stats)
		events.Count(ctx)
	}
	events.SendLogEvent(ctx)

	s.Close()
	return json.NewEncoder(cmd.ErrOrStderr()).Encode(stats)
}

// emitSampleTrace emits one server span with an internal and a client child.
func emitSampleTrace(ctx context.Context, tracer trace.Tracer, logger *zap.Logger, stats *emitStats) {
	ctx, span := tracer.Start(ctx, "handleRequest",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("key", "value")),
	)
	logger.Info("emitting sample trace", zap.String("trace_id", span.SpanContext().TraceID().String()))

	span.AddEvent("invoking handleRequest")
	span.RecordError(errors.New("test exception"))

	_, internal := tracer.Start(ctx, "prepareResponse", trace.WithSpanKind(trace.SpanKindInternal))
	internal.End()

	_, client := tracer.Start(ctx, "GET /dependency",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.method", "GET")),
	)
	client.End()

	span.End()

	stats.Traces++
	stats.Spans += 3
	stats.Internal++
}
