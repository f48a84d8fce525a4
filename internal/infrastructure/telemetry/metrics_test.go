package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/erp/labelsync/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "labelsync-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("labelsync"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Needs a collector on localhost:14317
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "labelsync-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, mp.IsEnabled())
	_ = mp.Shutdown(ctx)
}

// collect gathers every data point recorded so far
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestSyncMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zaptest.NewLogger(t))

	m, err := telemetry.NewSyncMetrics(mp.Meter("labelsync"))
	require.NoError(t, err)

	m.DocumentProcessed(ctx, "02", "ITM", "success")
	m.DocumentProcessed(ctx, "02", "ITM", "success")
	m.DocumentProcessed(ctx, "02", "PRM", "failed")
	m.RecordsEvaluated(ctx, "02", "emit", 7)
	m.RecordsEvaluated(ctx, "02", "defer", 0)
	m.BatchSent(ctx, "02", "document", 2000, 1)
	m.BatchSent(ctx, "02", "pending", 3, 0)
	m.RunFinished(ctx, "02", 3*time.Second, nil)
	m.RunFinished(ctx, "02", time.Second, errors.New("feed down"))

	data := collect(t, reader)

	store := telemetry.AttrStore.String("02")
	assert.Equal(t, int64(2), sumFor(t, data["labelsync_documents_total"],
		store, telemetry.AttrKind.String("ITM"), telemetry.AttrStatus.String("success")))
	assert.Equal(t, int64(1), sumFor(t, data["labelsync_documents_total"],
		store, telemetry.AttrKind.String("PRM"), telemetry.AttrStatus.String("failed")))
	assert.Equal(t, int64(7), sumFor(t, data["labelsync_records_total"],
		store, telemetry.AttrAction.String("emit")))
	assert.Equal(t, int64(0), sumFor(t, data["labelsync_records_total"],
		store, telemetry.AttrAction.String("defer")))
	assert.Equal(t, int64(2000), sumFor(t, data["labelsync_delivered_records_total"],
		store, telemetry.AttrSource.String("document")))
	assert.Equal(t, int64(1), sumFor(t, data["labelsync_delivery_failures_total"],
		store, telemetry.AttrSource.String("document")))
	assert.Equal(t, int64(1), sumFor(t, data["labelsync_runs_total"],
		store, telemetry.AttrOutcome.String("failed")))

	hist, ok := data["labelsync_run_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	require.NoError(t, mp.Shutdown(ctx))
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewSyncMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}
