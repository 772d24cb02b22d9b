package mysqltest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "TestInsert_round_trip", sanitizeName("TestInsert/round trip"))
	assert.Len(t, sanitizeName(strings.Repeat("a", 80)), 40)
}

func TestSplitSQL(t *testing.T) {
	got := splitSQL("CREATE TABLE a (id INT);\n\n  INSERT INTO a VALUES (1) ;;")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"}, got)
}

func TestIsValidDatabaseName(t *testing.T) {
	assert.True(t, isValidDatabaseName("test_abc_123"))
	assert.False(t, isValidDatabaseName(""))
	assert.False(t, isValidDatabaseName("bad-name"))
	assert.False(t, isValidDatabaseName(strings.Repeat("x", 65)))
}
