package dbexec

import (
	"context"

	"github.com/google/uuid"
)

type executionIDKey struct{}

// WithExecutionID attaches a fresh execution-context ID unless ctx already
// carries one. Calls sharing the returned context share one connection.
func WithExecutionID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ExecutionID(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, executionIDKey{}, uuid.NewString())
}

// NewExecutionContext always attaches a fresh ID, detaching ctx from any
// connection held by its parent.
func NewExecutionContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, executionIDKey{}, uuid.NewString())
}

// ExecutionID returns the execution-context ID carried by ctx.
func ExecutionID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(executionIDKey{}).(string)
	return id, ok && id != ""
}
