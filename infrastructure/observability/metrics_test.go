package observability

import (
	"context"
	"testing"

	"cardroom/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, point := range sum.DataPoints {
		total += point.Value
	}
	return total
}

func TestMetricsProvider_Records(t *testing.T) {
	// Setup
	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.InitializeWithReader(reader))

	// Execute
	mp.RecordLedgerTransaction("buy_in", "play")
	mp.RecordLedgerTransaction("cash_out", "play")
	mp.RecordTableTransition("active")
	mp.RecordRouterAssignment(RouteNewTable)
	mp.RecordEnforcerAction("force_leave")
	mp.RecordInviteConsumption(InviteConsumed)
	mp.UpdateDispatcherQueueDepth(3)
	mp.UpdateDispatcherQueueDepth(-1)
	mp.MeasureRouterPass()()

	// Verify
	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics[LedgerTransactionsTotal]))
	assert.Equal(t, int64(1), sumOf(t, metrics[TableTransitionsTotal]))
	assert.Equal(t, int64(1), sumOf(t, metrics[RouterAssignmentsTotal]))
	assert.Equal(t, int64(1), sumOf(t, metrics[EnforcerActionsTotal]))
	assert.Equal(t, int64(1), sumOf(t, metrics[InviteConsumptionsTotal]))
	assert.Equal(t, int64(2), sumOf(t, metrics[DispatcherQueueDepth]))
	assert.Contains(t, metrics, RouterPassDuration)
}

func TestMetricsProvider_DisabledIsSilent(t *testing.T) {
	var nilProvider *MetricsProvider
	assert.NotPanics(t, func() {
		nilProvider.RecordLedgerTransaction("buy_in", "real")
		nilProvider.UpdateDispatcherQueueDepth(1)
		nilProvider.MeasureRouterPass()()
	})

	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))
	assert.False(t, mp.isEnabled())
	assert.NotPanics(t, func() {
		mp.RecordTableTransition("ended")
	})
}
