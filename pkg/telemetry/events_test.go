// Tests for manual telemetry and the zap log bridge
package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// captureExporter keeps exported log records in memory.
type captureExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (c *captureExporter) Export(_ context.Context, records []sdklog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.records = append(c.records, r.Clone())
	}
	return nil
}

func (c *captureExporter) Shutdown(context.Context) error   { return nil }
func (c *captureExporter) ForceFlush(context.Context) error { return nil }

func (c *captureExporter) Records() []sdklog.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sdklog.Record(nil), c.records...)
}

func newCaptureProvider(t *testing.T) (*sdklog.LoggerProvider, *captureExporter) {
	t.Helper()
	exp := &captureExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	return lp, exp
}

func recordAttrs(r sdklog.Record) map[string]string {
	m := make(map[string]string)
	r.WalkAttributes(func(kv log.KeyValue) bool {
		m[kv.Key] = kv.Value.String()
		return true
	})
	return m
}

func TestEventsCount(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	events, err := NewEvents(mp, lognoop.NewLoggerProvider())
	require.NoError(t, err)

	events.Count(context.Background())
	events.Count(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	m := rm.ScopeMetrics[0].Metrics[0]
	assert.Equal(t, CounterName, m.Name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestSendLogEvent(t *testing.T) {
	t.Parallel()

	lp, exp := newCaptureProvider(t)
	events, err := NewEvents(metricnoop.NewMeterProvider(), lp)
	require.NoError(t, err)

	events.SendLogEvent(context.Background())

	records := exp.Records()
	require.Len(t, records, 1)
	assert.Equal(t, EventName, records[0].Body().AsString())
	assert.Equal(t, log.SeverityInfo, records[0].Severity())
	assert.Equal(t, map[string]string{
		"event.name":     "testEvent",
		"testAttribute1": "testValue1",
		"testAttribute2": "testValue2",
		"testAttribute3": "testValue3",
	}, recordAttrs(records[0]))
}

func TestBridgeLogger(t *testing.T) {
	t.Parallel()

	lp, exp := newCaptureProvider(t)
	core, logs := observer.New(zapcore.InfoLevel)

	logger := BridgeLogger(zap.New(core), lp)
	logger.Info("Hello from zap", zap.String("service", "user-service"))

	assert.Equal(t, 1, logs.FilterMessage("Hello from zap").Len())

	records := exp.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Hello from zap", records[0].Body().AsString())
	assert.Equal(t, "user-service", recordAttrs(records[0])["service"])
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	ErrorHandler(zap.New(core)).Handle(errors.New("export failed"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "export failed", entries[0].ContextMap()["error"])
}
