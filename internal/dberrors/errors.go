// Package dberrors defines the error envelope raised by the data-access engine.
package dberrors

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/go-sql-driver/mysql"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNoConnection = errors.New("no connection for execution context")
	ErrTranslation  = errors.New("clause translation failed")
	ErrStatement    = errors.New("statement execution failed")
)

// Kind classifies an engine fault.
type Kind int

const (
	KindStatement Kind = iota
	KindNoConnection
	KindTranslation
)

func (k Kind) String() string {
	switch k {
	case KindNoConnection:
		return "no_connection"
	case KindTranslation:
		return "translation"
	default:
		return "statement"
	}
}

// MySQL server error numbers.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrAccessDenied       = 1045
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
	mysqlErrDuplicateEntry     = 1062
	mysqlErrRowIsReferenced    = 1451
	mysqlErrNoReferencedRow    = 1452
	mysqlErrBadNull            = 1048
	mysqlErrNoDefault          = 1364
	mysqlErrDataTooLong        = 1406
	mysqlErrTooManyConnections = 1040
	mysqlErrServerShutdown     = 1053
	mysqlErrConnectionError    = 2002
	mysqlErrConnHostError      = 2003
	mysqlErrServerGone         = 2006
	mysqlErrServerLost         = 2013
)

// Error is the engine error envelope.
type Error struct {
	Kind Kind
	// Category is a stable machine-readable code such as "unique_violation".
	Category string
	// Class groups categories: "integrity", "operational" or "access".
	Class string
	// Number is the MySQL error number, when known.
	Number uint16
	// Message describes the failure.
	Message string
	// Known is a user-facing message for recognised categories.
	Known string
	// Site is the file:line of the engine call that raised the fault.
	Site string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Category != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Category, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNoConnection:
		return e.Kind == KindNoConnection
	case ErrTranslation:
		return e.Kind == KindTranslation
	case ErrStatement:
		return e.Kind == KindStatement
	}
	return false
}

// IsKnown reports whether the fault carries a user-facing message.
func (e *Error) IsKnown() bool {
	return e.Known != ""
}

// NoConnection reports that the execution context has no open connection.
// An empty executionID means ctx carries no execution context at all.
func NoConnection(executionID string) error {
	msg := fmt.Sprintf("execution context %q has no open connection", executionID)
	if executionID == "" {
		msg = "no execution context attached to the request"
	}
	return &Error{
		Kind:    KindNoConnection,
		Message: msg,
		Site:    callerSite(2),
	}
}

// Translation reports a clause that cannot be resolved against entity metadata.
func Translation(format string, args ...any) error {
	return &Error{
		Kind:    KindTranslation,
		Message: fmt.Sprintf(format, args...),
		Site:    callerSite(2),
	}
}

// Statement wraps a failure raised while executing SQL. MySQL errors are
// classified into categories; errors that already are *Error are returned as is.
func Statement(err error) error {
	if err == nil {
		return nil
	}
	return newStatement(err, 3)
}

// ConnectionFailure wraps a failure to obtain a connection. Unless the driver
// error classifies otherwise (for example access denied) the fault is a
// connection_failure.
func ConnectionFailure(err error) error {
	if err == nil {
		return nil
	}
	out := newStatement(err, 3)
	if e, ok := As(out); ok && e.Kind == KindStatement && e.Category == "" {
		e.Category, e.Class, e.Known = "connection_failure", "operational", knownConnection
	}
	return out
}

func newStatement(err error, skip int) error {
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}

	out := &Error{
		Kind:    KindStatement,
		Message: err.Error(),
		Site:    callerSite(skip),
		Err:     err,
	}

	var mysqlErr *mysql.MySQLError
	switch {
	case errors.As(err, &mysqlErr):
		out.Number = mysqlErr.Number
		out.Message = mysqlErr.Message
		classify(out, mysqlErr.Number)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, mysql.ErrInvalidConn):
		out.Category, out.Class, out.Known = "connection_failure", "operational", knownConnection
	}
	return out
}

const (
	knownUnique     = "A record with the same unique value already exists."
	knownForeignKey = "The record is referenced by, or references, a record that does not exist."
	knownNotNull    = "A mandatory value is missing."
	knownTooLong    = "A value exceeds the maximum allowed length."
	knownAccess     = "Access to the requested data was denied."
	knownConnection = "The database is unavailable. Please try again later."
)

func classify(e *Error, number uint16) {
	switch number {
	case mysqlErrDuplicateEntry:
		e.Category, e.Class, e.Known = "unique_violation", "integrity", knownUnique
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
		e.Category, e.Class, e.Known = "foreign_key_violation", "integrity", knownForeignKey
	case mysqlErrBadNull, mysqlErrNoDefault:
		e.Category, e.Class, e.Known = "not_null_violation", "integrity", knownNotNull
	case mysqlErrDataTooLong:
		e.Category, e.Class, e.Known = "data_too_long", "integrity", knownTooLong
	case mysqlErrDBAccessDenied, mysqlErrAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		e.Category, e.Class, e.Known = "access_denied", "access", knownAccess
	case mysqlErrTooManyConnections, mysqlErrServerShutdown, mysqlErrConnectionError,
		mysqlErrConnHostError, mysqlErrServerGone, mysqlErrServerLost:
		e.Category, e.Class, e.Known = "connection_failure", "operational", knownConnection
	}
}

// As returns the envelope carried by err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
