package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jipp1987/PruebaRestService/internal/dberrors"
)

func installManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestDAOMetrics_RecordOperation(t *testing.T) {
	reader := installManualReader(t)
	m, err := InitDAOMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOperation(ctx, "select", "Cliente", 3*time.Millisecond, nil)
	m.RecordOperation(ctx, "insert", "Cliente", time.Millisecond,
		dberrors.Statement(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	m.RecordOperation(ctx, "update", "Cliente", time.Millisecond, errors.New("plain"))

	metrics := collect(t, reader)

	total, ok := metrics["dao.statements.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var count int64
	for _, dp := range total.DataPoints {
		count += dp.Value
	}
	assert.Equal(t, int64(3), count)

	errs, ok := metrics["dao.errors.total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	categories := make(map[string]int64)
	for _, dp := range errs.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("category"))
		categories[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"unique_violation": 1, "unknown": 1}, categories)
}

func TestDAOMetrics_Sessions(t *testing.T) {
	reader := installManualReader(t)
	m, err := InitDAOMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.SessionOpened(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
	m.RecordRows(ctx, "Cliente", 4)

	metrics := collect(t, reader)
	active, ok := metrics["dao.sessions.active"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, active.DataPoints, 1)
	assert.Equal(t, int64(1), active.DataPoints[0].Value)

	rows, ok := metrics["dao.select.rows"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(4), rows.DataPoints[0].Sum)
}

func TestDAOMetrics_NilReceiver(t *testing.T) {
	var m *DAOMetrics
	assert.NotPanics(t, func() {
		m.RecordOperation(context.Background(), "select", "Cliente", time.Millisecond, nil)
		m.RecordRows(context.Background(), "Cliente", 1)
		m.SessionOpened(context.Background())
		m.SessionClosed(context.Background())
	})
}
