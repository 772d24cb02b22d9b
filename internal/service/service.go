// Package service runs data-access operations inside transactions.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dao"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/logging"
	"github.com/jipp1987/PruebaRestService/internal/model"
)

// Action is a mutation requested on an entity.
type Action int

const (
	Create Action = iota + 1
	Update
	Delete
	Select
)

func (a Action) String() string {
	switch a {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Select:
		return "select"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// WithinTransaction runs fn in the transaction of the execution context of
// ctx. When ctx has no open connection one is opened, committed when fn
// succeeds, rolled back when it fails or panics, and released afterwards.
// Nested calls join the outer transaction.
func WithinTransaction(ctx context.Context, txm *dbexec.TxManager, fn func(ctx context.Context) error) error {
	ctx = dbexec.WithExecutionID(ctx)
	err := txm.Run(ctx, fn)
	if err != nil {
		id, _ := dbexec.ExecutionID(ctx)
		logging.FromContext(ctx).Debug("transaction failed",
			slog.String("execution_id", id),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// Service exposes the operations of one entity type, each in its own
// transaction unless the caller's context already holds one.
type Service[T model.Entity] struct {
	txm *dbexec.TxManager
	dao *dao.Dao[T]
}

// New creates a service over d.
func New[T model.Entity](txm *dbexec.TxManager, d *dao.Dao[T]) *Service[T] {
	return &Service[T]{txm: txm, dao: d}
}

// EntityType returns the metadata of T.
func (s *Service[T]) EntityType() *model.EntityType {
	return s.dao.EntityType()
}

// Create inserts e, assigning its generated identifier.
func (s *Service[T]) Create(ctx context.Context, e T) error {
	return WithinTransaction(ctx, s.txm, func(ctx context.Context) error {
		return s.dao.Insert(ctx, e)
	})
}

// Update updates e by its identifier.
func (s *Service[T]) Update(ctx context.Context, e T) error {
	return WithinTransaction(ctx, s.txm, func(ctx context.Context) error {
		return s.dao.Update(ctx, e)
	})
}

// Delete deletes e by its identifier.
func (s *Service[T]) Delete(ctx context.Context, e T) error {
	return WithinTransaction(ctx, s.txm, func(ctx context.Context) error {
		return s.dao.Delete(ctx, e)
	})
}

// Select returns the entities matching q.
func (s *Service[T]) Select(ctx context.Context, q clause.Query) ([]T, error) {
	var out []T
	err := WithinTransaction(ctx, s.txm, func(ctx context.Context) error {
		var err error
		out, err = s.dao.Select(ctx, q)
		return err
	})
	return out, err
}

// FindByID returns the entity with the given identifier.
func (s *Service[T]) FindByID(ctx context.Context, id any) (T, error) {
	var out T
	err := WithinTransaction(ctx, s.txm, func(ctx context.Context) error {
		var err error
		out, err = s.dao.FindByID(ctx, id)
		return err
	})
	return out, err
}

// Apply performs a mutating action on e.
func (s *Service[T]) Apply(ctx context.Context, action Action, e T) error {
	switch action {
	case Create:
		return s.Create(ctx, e)
	case Update:
		return s.Update(ctx, e)
	case Delete:
		return s.Delete(ctx, e)
	default:
		return fmt.Errorf("unsupported action %s", action)
	}
}

// ApplyEntity performs action on e, which must be a T.
func (s *Service[T]) ApplyEntity(ctx context.Context, action Action, e model.Entity) error {
	typed, ok := e.(T)
	if !ok {
		return fmt.Errorf("%s service cannot handle %T", s.EntityType().Name, e)
	}
	return s.Apply(ctx, action, typed)
}

// SelectEntities is Select returning model.Entity values.
func (s *Service[T]) SelectEntities(ctx context.Context, q clause.Query) ([]model.Entity, error) {
	found, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, len(found))
	for i, e := range found {
		out[i] = e
	}
	return out, nil
}

// FindEntity is FindByID returning a model.Entity.
func (s *Service[T]) FindEntity(ctx context.Context, id any) (model.Entity, error) {
	found, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return found, nil
}
