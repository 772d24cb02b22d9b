// Package sqlutil provides SQL identifier helpers.
package sqlutil

import "strings"

// QuoteIdentifier quotes a SQL identifier (table name, column name, alias)
// with backticks and escapes any backticks within the identifier.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, "`", "``")
	return "`" + escaped + "`"
}

// QuoteColumn renders a table-qualified column reference.
func QuoteColumn(table, column string) string {
	return QuoteIdentifier(table) + "." + QuoteIdentifier(column)
}
