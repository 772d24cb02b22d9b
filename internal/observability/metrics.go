package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jipp1987/PruebaRestService/internal/dberrors"
)

// DAOMetrics holds custom metrics for data-access operations.
type DAOMetrics struct {
	statementDuration metric.Float64Histogram
	statementCounter  metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeSessions    metric.Int64UpDownCounter
	resultRows        metric.Int64Histogram
}

// InitDAOMetrics initializes data-access metrics on the global meter provider.
func InitDAOMetrics() (*DAOMetrics, error) {
	meter := otel.Meter(instrumentationName)

	statementDuration, err := meter.Float64Histogram(
		"dao.statement.duration",
		metric.WithDescription("Duration of data-access operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement duration histogram: %w", err)
	}

	statementCounter, err := meter.Int64Counter(
		"dao.statements.total",
		metric.WithDescription("Total number of data-access operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"dao.errors.total",
		metric.WithDescription("Total number of failed data-access operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"dao.sessions.active",
		metric.WithDescription("Number of execution contexts holding a connection"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active sessions counter: %w", err)
	}

	resultRows, err := meter.Int64Histogram(
		"dao.select.rows",
		metric.WithDescription("Number of entities returned by selects"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create result rows histogram: %w", err)
	}

	return &DAOMetrics{
		statementDuration: statementDuration,
		statementCounter:  statementCounter,
		errorCounter:      errorCounter,
		activeSessions:    activeSessions,
		resultRows:        resultRows,
	}, nil
}

// RecordOperation records one data-access operation with its duration and outcome.
func (m *DAOMetrics) RecordOperation(ctx context.Context, operation, entity string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("entity", entity),
		attribute.Bool("has_error", err != nil),
	}
	m.statementDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.statementCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err == nil {
		return
	}
	kind, category := "unknown", "unknown"
	if e, ok := dberrors.As(err); ok {
		kind = e.Kind.String()
		if e.Category != "" {
			category = e.Category
		}
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("entity", entity),
		attribute.String("kind", kind),
		attribute.String("category", category),
	))
}

// RecordRows records the number of entities returned by a select.
func (m *DAOMetrics) RecordRows(ctx context.Context, entity string, count int) {
	if m == nil {
		return
	}
	m.resultRows.Record(ctx, int64(count), metric.WithAttributes(
		attribute.String("entity", entity),
	))
}

// SessionOpened increments the active sessions counter.
func (m *DAOMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionClosed decrements the active sessions counter.
func (m *DAOMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the DAOMetrics instance.
func InitMetrics(logger *slog.Logger) (*DAOMetrics, error) {
	metrics, err := InitDAOMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DAO metrics: %w", err)
	}

	logger.Info("custom DAO metrics initialized")
	return metrics, nil
}
