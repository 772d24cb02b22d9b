package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/logging"
)

// ExecutionIDHeader is the response header carrying the execution context ID.
const ExecutionIDHeader = "X-Execution-ID"

// ErrorWriter writes err to the client. The request context carries the
// execution context logger.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// TransactionMiddleware runs each request in its own execution context with
// one connection and one transaction. The handler's response is held until
// the transaction ends: it commits when the status is below 400 and rolls
// back otherwise or when the handler panics. When opening the connection or
// committing fails, the held response is discarded and writeErr reports the
// fault instead. A nil writeErr writes a plain text error.
//
// Requests whose method is not in methods pass through; with no methods
// every request is wrapped.
func TransactionMiddleware(txm *dbexec.TxManager, writeErr ErrorWriter, methods ...string) func(http.Handler) http.Handler {
	wrap := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		wrap[m] = struct{}{}
	}
	if writeErr == nil {
		writeErr = plainTextError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if txm == nil {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := wrap[r.Method]; len(wrap) > 0 && !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := dbexec.NewExecutionContext(r.Context())
			id, _ := dbexec.ExecutionID(ctx)
			logger := logging.FromContext(ctx).WithExecutionID(id)
			ctx = logging.WithLogger(ctx, logger)
			r = r.WithContext(ctx)
			w.Header().Set(ExecutionIDHeader, id)

			owner, err := txm.Connect(ctx)
			if err != nil {
				logger.Error("failed to start transaction", slog.String("error", err.Error()))
				writeErr(w, r, err)
				return
			}

			buf := newBufferedResponse()
			defer func() {
				if p := recover(); p != nil {
					_ = txm.Rollback(ctx, owner)
					_ = txm.Disconnect(ctx, owner)
					panic(p)
				}
			}()

			next.ServeHTTP(buf, r)

			if buf.statusCode >= http.StatusBadRequest {
				if err := txm.Rollback(ctx, owner); err != nil {
					logger.Error("rollback failed", slog.String("error", err.Error()))
				}
				disconnect(ctx, txm, owner, logger)
				buf.flush(w)
				return
			}

			if err := txm.Commit(ctx, owner); err != nil {
				logger.Error("commit failed", slog.String("error", err.Error()))
				_ = txm.Rollback(ctx, owner)
				disconnect(ctx, txm, owner, logger)
				writeErr(w, r, err)
				return
			}
			disconnect(ctx, txm, owner, logger)
			buf.flush(w)
		})
	}
}

func disconnect(ctx context.Context, txm *dbexec.TxManager, owner bool, logger *logging.Logger) {
	if err := txm.Disconnect(ctx, owner); err != nil {
		logger.Error("disconnect failed", slog.String("error", err.Error()))
	}
}

func plainTextError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusInternalServerError
	if e, ok := dberrors.As(err); ok && e.Category == "connection_failure" {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}

// bufferedResponse holds a handler's header, status and body until flush.
type bufferedResponse struct {
	header     http.Header
	statusCode int
	written    bool
	body       bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), statusCode: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(statusCode int) {
	if !b.written {
		b.statusCode = statusCode
		b.written = true
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.written = true
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = v
	}
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(b.body.Bytes())
}
