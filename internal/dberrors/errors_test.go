package dberrors

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementClassification(t *testing.T) {
	tests := []struct {
		number   uint16
		category string
		class    string
	}{
		{1062, "unique_violation", "integrity"},
		{1451, "foreign_key_violation", "integrity"},
		{1452, "foreign_key_violation", "integrity"},
		{1048, "not_null_violation", "integrity"},
		{1364, "not_null_violation", "integrity"},
		{1406, "data_too_long", "integrity"},
		{1044, "access_denied", "access"},
		{1142, "access_denied", "access"},
		{2013, "connection_failure", "operational"},
		{1040, "connection_failure", "operational"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			err := Statement(fmt.Errorf("exec: %w", &mysql.MySQLError{Number: tt.number, Message: "boom"}))
			e, ok := As(err)
			require.True(t, ok)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.class, e.Class)
			assert.Equal(t, tt.number, e.Number)
			assert.Equal(t, "boom", e.Message)
			assert.True(t, e.IsKnown())
			assert.ErrorIs(t, err, ErrStatement)
			assert.NotErrorIs(t, err, ErrTranslation)
		})
	}
}

func TestStatementUnknownMySQLError(t *testing.T) {
	err := Statement(&mysql.MySQLError{Number: 1213, Message: "deadlock"})
	e, ok := As(err)
	require.True(t, ok)
	assert.Empty(t, e.Category)
	assert.False(t, e.IsKnown())

	var mysqlErr *mysql.MySQLError
	require.True(t, errors.As(err, &mysqlErr))
	assert.Equal(t, uint16(1213), mysqlErr.Number)
}

func TestStatementBadConn(t *testing.T) {
	e, ok := As(Statement(driver.ErrBadConn))
	require.True(t, ok)
	assert.Equal(t, "connection_failure", e.Category)

	e, ok = As(Statement(mysql.ErrInvalidConn))
	require.True(t, ok)
	assert.Equal(t, "operational", e.Class)
}

func TestStatementDoesNotDoubleWrap(t *testing.T) {
	inner := Translation("unknown field %q in entity %s", "foo", "Cliente")
	assert.Same(t, inner, Statement(inner))
	assert.Nil(t, Statement(nil))
}

func TestTranslationAndNoConnection(t *testing.T) {
	err := Translation("unknown field %q in entity %s", "foo", "Cliente")
	assert.ErrorIs(t, err, ErrTranslation)
	assert.Contains(t, err.Error(), `"foo"`)
	assert.Contains(t, err.Error(), "Cliente")

	e, _ := As(err)
	assert.Contains(t, e.Site, "errors_test.go:")

	nc := NoConnection("ctx-1")
	assert.ErrorIs(t, nc, ErrNoConnection)
	assert.Contains(t, nc.Error(), "ctx-1")
	assert.Equal(t, "no_connection", KindNoConnection.String())
	assert.Contains(t, NoConnection("").Error(), "no execution context attached")
}

func TestConnectionFailure(t *testing.T) {
	err := ConnectionFailure(errors.New("dial tcp: connection refused"))
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindStatement, e.Kind)
	assert.Equal(t, "connection_failure", e.Category)
	assert.True(t, e.IsKnown())
	assert.Contains(t, e.Site, "errors_test.go:")

	denied, _ := As(ConnectionFailure(&mysql.MySQLError{Number: 1045, Message: "denied"}))
	assert.Equal(t, "access_denied", denied.Category)

	assert.Nil(t, ConnectionFailure(nil))
}

func TestStatementSiteIsCaller(t *testing.T) {
	e, _ := As(Statement(errors.New("boom")))
	assert.Contains(t, e.Site, "errors_test.go:")
}
