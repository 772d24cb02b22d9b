// Package planner renders translated clauses and entity values into
// parameterized MySQL statements.
package planner

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}
