// Custom telemetry recorded by hand: a named log event and a manual counter.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
)

// Names of the manually recorded telemetry.
const (
	CounterName = "Manual_Metric_Counter"
	EventName   = "testEvent"
)

// Events records the custom log event and the manual counter.
type Events struct {
	counter metric.Int64Counter
	logger  log.Logger
}

// NewEvents creates the instruments on the given providers.
func NewEvents(mp metric.MeterProvider, lp log.LoggerProvider) (*Events, error) {
	counter, err := mp.Meter(instrumentationName).Int64Counter(CounterName,
		metric.WithDescription("Number of manually counted operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating counter %s: %w", CounterName, err)
	}
	return &Events{
		counter: counter,
		logger:  lp.Logger(instrumentationName),
	}, nil
}

// Count adds one to the manual counter.
func (e *Events) Count(ctx context.Context) {
	e.counter.Add(ctx, 1)
}

// SendLogEvent emits the custom event with its three test attributes.
func (e *Events) SendLogEvent(ctx context.Context) {
	var rec log.Record
	rec.SetSeverity(log.SeverityInfo)
	rec.SetSeverityText("INFO")
	rec.SetBody(log.StringValue(EventName))
	rec.AddAttributes(
		log.String("event.name", EventName),
		log.String("testAttribute1", "testValue1"),
		log.String("testAttribute2", "testValue2"),
		log.String("testAttribute3", "testValue3"),
	)
	e.logger.Emit(ctx, rec)
}
