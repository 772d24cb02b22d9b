package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/logging"
)

// SessionObserver is notified when execution contexts open and close connections.
type SessionObserver interface {
	SessionOpened(ctx context.Context)
	SessionClosed(ctx context.Context)
}

// Option configures a TxManager.
type Option func(*TxManager)

// WithTxOptions sets the options used to begin every transaction.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(m *TxManager) { m.txOpts = opts }
}

// WithSessionObserver registers an observer for connection lifecycle events.
func WithSessionObserver(o SessionObserver) Option {
	return func(m *TxManager) { m.observer = o }
}

// session is the connection record of one execution context. ready is closed
// once the connection has been acquired (or failed to be).
type session struct {
	ready chan struct{}
	err   error

	mu   sync.Mutex
	conn *sql.Conn
	tx   *sql.Tx
}

// TxManager binds one pooled connection and one transaction to each execution
// context. The first Connect for a context opens the connection and reports
// ownership; nested calls report false and only the owner may commit, roll
// back or disconnect.
//
// Statements on one context are serialized: the session lock is held until
// the returned Rows are closed.
type TxManager struct {
	db       *sql.DB
	txOpts   *sql.TxOptions
	observer SessionObserver

	mu       sync.Mutex
	sessions map[string]*session
}

// NewTxManager creates a manager drawing connections from db.
func NewTxManager(db *sql.DB, opts ...Option) *TxManager {
	m := &TxManager{
		db:       db,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens a connection and transaction for the execution context of ctx.
// It returns true when this call opened the connection and false when the
// context was already connected.
func (m *TxManager) Connect(ctx context.Context) (bool, error) {
	id, ok := ExecutionID(ctx)
	if !ok {
		return false, dberrors.NoConnection("")
	}

	m.mu.Lock()
	if existing, found := m.sessions[id]; found {
		m.mu.Unlock()
		<-existing.ready
		return false, existing.err
	}
	s := &session{ready: make(chan struct{})}
	m.sessions[id] = s
	m.mu.Unlock()

	conn, err := m.db.Conn(ctx)
	if err == nil {
		var tx *sql.Tx
		if tx, err = conn.BeginTx(ctx, m.txOpts); err == nil {
			s.conn, s.tx = conn, tx
		} else {
			_ = conn.Close()
		}
	}
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		s.err = dberrors.ConnectionFailure(fmt.Errorf("failed to open connection: %w", err))
		close(s.ready)
		return false, s.err
	}
	close(s.ready)

	logging.FromContext(ctx).Debug("connection opened", slog.String("execution_id", id))
	if m.observer != nil {
		m.observer.SessionOpened(ctx)
	}
	return true, nil
}

// Commit commits the current transaction when owner is true. The context
// stays connected; the next statement begins a new transaction.
func (m *TxManager) Commit(ctx context.Context, owner bool) error {
	s, id, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if !owner {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	err = s.tx.Commit()
	s.tx = nil
	if err != nil {
		return dberrors.Statement(fmt.Errorf("commit failed: %w", err))
	}
	logging.FromContext(ctx).Debug("transaction committed", slog.String("execution_id", id))
	return nil
}

// Rollback rolls back the current transaction when owner is true.
func (m *TxManager) Rollback(ctx context.Context, owner bool) error {
	s, id, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	if !owner {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rollback(); err != nil {
		return dberrors.Statement(fmt.Errorf("rollback failed: %w", err))
	}
	logging.FromContext(ctx).Debug("transaction rolled back", slog.String("execution_id", id))
	return nil
}

// Disconnect releases the connection of the execution context when owner is
// true, rolling back any transaction left open.
func (m *TxManager) Disconnect(ctx context.Context, owner bool) error {
	if !owner {
		return nil
	}
	s, id, err := m.lookup(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	rbErr := s.rollback()
	closeErr := s.conn.Close()
	s.conn = nil

	logging.FromContext(ctx).Debug("connection closed", slog.String("execution_id", id))
	if m.observer != nil {
		m.observer.SessionClosed(ctx)
	}
	if err := errors.Join(rbErr, closeErr); err != nil {
		return dberrors.Statement(fmt.Errorf("disconnect failed: %w", err))
	}
	return nil
}

// Run executes fn inside the transaction of the execution context of ctx,
// attaching a new execution ID when ctx has none. When this call owns the
// connection it commits on success and rolls back on error or panic, then
// disconnects. Nested calls run fn directly inside the outer transaction.
func (m *TxManager) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx = WithExecutionID(ctx)
	owner, err := m.Connect(ctx)
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if finished || !owner {
			return
		}
		// fn panicked or returned an error.
		_ = m.Rollback(ctx, owner)
		_ = m.Disconnect(ctx, owner)
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	if err := m.Commit(ctx, owner); err != nil {
		return err
	}
	finished = true
	return m.Disconnect(ctx, owner)
}

// QueryContext runs a query inside the transaction of the execution context.
func (m *TxManager) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	s, _, err := m.lookup(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	tx, err := s.activeTx(ctx, m.txOpts)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &sessionRows{Rows: rows, release: s.mu.Unlock}, nil
}

// ExecContext runs a statement inside the transaction of the execution context.
func (m *TxManager) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s, _, err := m.lookup(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.activeTx(ctx, m.txOpts)
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

// Active reports whether the execution context of ctx holds a connection.
func (m *TxManager) Active(ctx context.Context) bool {
	id, ok := ExecutionID(ctx)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.sessions[id]
	return found
}

// Len returns the number of open connection records.
func (m *TxManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *TxManager) lookup(ctx context.Context) (*session, string, error) {
	id, ok := ExecutionID(ctx)
	if !ok {
		return nil, "", dberrors.NoConnection("")
	}
	m.mu.Lock()
	s, found := m.sessions[id]
	m.mu.Unlock()
	if !found {
		return nil, id, dberrors.NoConnection(id)
	}
	<-s.ready
	if s.err != nil {
		return nil, id, dberrors.NoConnection(id)
	}
	return s, id, nil
}

// activeTx returns the open transaction, beginning a new one after a commit
// or rollback. The caller holds s.mu.
func (s *session) activeTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if s.conn == nil {
		return nil, sql.ErrConnDone
	}
	if s.tx == nil {
		tx, err := s.conn.BeginTx(ctx, opts)
		if err != nil {
			return nil, dberrors.Statement(fmt.Errorf("failed to begin transaction: %w", err))
		}
		s.tx = tx
	}
	return s.tx, nil
}

// rollback discards the open transaction, if any. The caller holds s.mu.
func (s *session) rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// sessionRows releases the session lock when closed.
type sessionRows struct {
	*sql.Rows
	once    sync.Once
	release func()
}

func (r *sessionRows) Close() error {
	defer r.once.Do(r.release)
	return r.Rows.Close()
}
