// Package dao exposes the data-access engine for one entity type: inserts,
// updates and deletes keyed by identifier, clause-driven selects that return
// nested entity graphs, and the transaction primitives of the execution context.
package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/hydrate"
	"github.com/jipp1987/PruebaRestService/internal/logging"
	"github.com/jipp1987/PruebaRestService/internal/model"
	"github.com/jipp1987/PruebaRestService/internal/observability"
	"github.com/jipp1987/PruebaRestService/internal/planner"
	"github.com/jipp1987/PruebaRestService/internal/translator"
)

// ErrNotFound is returned by FindByID when no row matches the identifier.
var ErrNotFound = errors.New("entity not found")

// Option configures a Dao.
type Option func(*options)

type options struct {
	limits  planner.PlanLimits
	metrics *observability.DAOMetrics
}

// WithLimits bounds the cost of selects issued by the Dao.
func WithLimits(limits planner.PlanLimits) Option {
	return func(o *options) { o.limits = limits }
}

// WithMetrics records operation metrics.
func WithMetrics(m *observability.DAOMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// Dao is the data-access object for entities of type T. T is normally a
// pointer to a struct implementing model.Entity.
type Dao[T model.Entity] struct {
	txm     *dbexec.TxManager
	entity  *model.EntityType
	limits  planner.PlanLimits
	metrics *observability.DAOMetrics
}

// New creates a Dao executing through txm.
func New[T model.Entity](txm *dbexec.TxManager, opts ...Option) *Dao[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var zero T
	return &Dao[T]{
		txm:     txm,
		entity:  zero.EntityType(),
		limits:  o.limits,
		metrics: o.metrics,
	}
}

// EntityType returns the metadata of T.
func (d *Dao[T]) EntityType() *model.EntityType {
	return d.entity
}

// Connect opens the connection of the execution context carried by ctx.
// See dbexec.TxManager.Connect.
func (d *Dao[T]) Connect(ctx context.Context) (bool, error) {
	return d.txm.Connect(ctx)
}

// Commit commits the execution context's transaction when owner is true.
func (d *Dao[T]) Commit(ctx context.Context, owner bool) error {
	return d.txm.Commit(ctx, owner)
}

// Rollback rolls back the execution context's transaction when owner is true.
func (d *Dao[T]) Rollback(ctx context.Context, owner bool) error {
	return d.txm.Rollback(ctx, owner)
}

// Disconnect releases the execution context's connection when owner is true.
func (d *Dao[T]) Disconnect(ctx context.Context, owner bool) error {
	return d.txm.Disconnect(ctx, owner)
}

// Insert inserts e. When e has no identifier the generated one is assigned to it.
func (d *Dao[T]) Insert(ctx context.Context, e T) (err error) {
	ctx, done := d.begin(ctx, "insert")
	defer func() { done(err) }()

	q, err := planner.PlanInsert(e)
	if err != nil {
		return dberrors.Statement(fmt.Errorf("plan insert: %w", err))
	}
	generate := false
	if id, idErr := model.IDValue(e); idErr == nil && model.IsZero(id) {
		generate = true
	}

	return d.txm.Run(ctx, func(ctx context.Context) error {
		res, err := d.exec(ctx, q)
		if err != nil {
			return err
		}
		if !generate {
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			return dberrors.Statement(fmt.Errorf("read generated id: %w", err))
		}
		if err := model.SetID(e, id); err != nil {
			return dberrors.Statement(fmt.Errorf("assign generated id: %w", err))
		}
		return nil
	})
}

// Update updates every field of e by its identifier.
func (d *Dao[T]) Update(ctx context.Context, e T) (err error) {
	ctx, done := d.begin(ctx, "update")
	defer func() { done(err) }()

	q, err := planner.PlanUpdate(e)
	if err != nil {
		return dberrors.Statement(fmt.Errorf("plan update: %w", err))
	}
	return d.txm.Run(ctx, func(ctx context.Context) error {
		_, err := d.exec(ctx, q)
		return err
	})
}

// Delete deletes e by its identifier.
func (d *Dao[T]) Delete(ctx context.Context, e T) (err error) {
	ctx, done := d.begin(ctx, "delete")
	defer func() { done(err) }()

	q, err := planner.PlanDelete(e)
	if err != nil {
		return dberrors.Statement(fmt.Errorf("plan delete: %w", err))
	}
	return d.txm.Run(ctx, func(ctx context.Context) error {
		_, err := d.exec(ctx, q)
		return err
	})
}

// Select translates q against T, runs the resulting statement and rebuilds
// one entity per row. A query that fails to translate issues no SQL.
func (d *Dao[T]) Select(ctx context.Context, q clause.Query) (out []T, err error) {
	ctx, done := d.begin(ctx, "select")
	defer func() { done(err) }()

	res, err := translator.Translate(d.entity, q)
	if err != nil {
		return nil, err
	}
	planned, err := planner.PlanSelect(res, d.limits)
	if err != nil {
		if _, ok := dberrors.As(err); ok {
			return nil, err
		}
		// Limit violations are faults of the query, not of the database.
		return nil, dberrors.Translation("%s select: %v", d.entity.Name, err)
	}

	var rows []map[string]interface{}
	err = d.txm.Run(ctx, func(ctx context.Context) error {
		var qErr error
		rows, qErr = d.query(ctx, planned)
		return qErr
	})
	if err != nil {
		return nil, err
	}

	entities, err := hydrate.Rehydrate(rows, res.Aliases, d.entity)
	if err != nil {
		return nil, dberrors.Statement(fmt.Errorf("rehydrate %s: %w", d.entity.Name, err))
	}
	out = make([]T, 0, len(entities))
	for _, e := range entities {
		typed, ok := e.(T)
		if !ok {
			return nil, dberrors.Statement(fmt.Errorf("rehydrated %T is not %T", e, typed))
		}
		out = append(out, typed)
	}
	d.metrics.RecordRows(ctx, d.entity.Name, len(out))
	return out, nil
}

// FindByID returns the entity with the given identifier, selecting every
// field of T. It returns ErrNotFound when no row matches.
func (d *Dao[T]) FindByID(ctx context.Context, id interface{}) (T, error) {
	var zero T
	limit := uint64(1)
	found, err := d.Select(ctx, clause.Query{
		Filters: []clause.Filter{{Path: d.entity.IDField, Operator: clause.Equals, Value: id}},
		Limit:   &limit,
	})
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, fmt.Errorf("%s %v: %w", d.entity.Name, id, ErrNotFound)
	}
	return found[0], nil
}

// begin starts the span of one operation and returns the function that ends
// it and records metrics.
func (d *Dao[T]) begin(ctx context.Context, operation string) (context.Context, func(error)) {
	ctx, span := startSpan(ctx, "dao."+operation,
		attribute.String("db.operation", operation),
		attribute.String("db.entity", d.entity.Name),
		attribute.String("db.table", d.entity.Table),
	)
	start := time.Now()
	return ctx, func(err error) {
		elapsed := time.Since(start)
		d.metrics.RecordOperation(ctx, operation, d.entity.Name, elapsed, err)
		if err != nil {
			logging.FromContext(ctx).Warn("data-access operation failed",
				slog.String("operation", operation),
				slog.String("entity", d.entity.Name),
				slog.String("error", err.Error()),
			)
		}
		finishSpan(span, err)
	}
}

func (d *Dao[T]) exec(ctx context.Context, q planner.SQLQuery) (sql.Result, error) {
	d.logStatement(ctx, q)
	res, err := d.txm.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, dberrors.Statement(err)
	}
	return res, nil
}

func (d *Dao[T]) query(ctx context.Context, q planner.SQLQuery) ([]map[string]interface{}, error) {
	d.logStatement(ctx, q)
	rows, err := d.txm.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, dberrors.Statement(err)
	}
	defer rows.Close()

	scanned, err := hydrate.ScanRows(rows)
	if err != nil {
		return nil, dberrors.Statement(err)
	}
	return scanned, nil
}

func (d *Dao[T]) logStatement(ctx context.Context, q planner.SQLQuery) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("db.query.text", q.SQL))
	id, _ := dbexec.ExecutionID(ctx)
	logging.FromContext(ctx).Debug("executing statement",
		slog.String("entity", d.entity.Name),
		slog.String("execution_id", id),
		slog.String("sql", q.SQL),
		slog.Int("args", len(q.Args)),
	)
}
