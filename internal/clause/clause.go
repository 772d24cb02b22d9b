// Package clause describes queries over entity graphs as plain values.
// Paths are dotted logical field names relative to the base entity,
// for example "tipo_cliente.codigo".
package clause

// Field selects one value, or all scalar values when the path ends in "*".
// Lazy selects only the identifier of the relation at Path.
type Field struct {
	Path       string    `json:"field_name"`
	Alias      string    `json:"field_alias,omitempty"`
	TableAlias string    `json:"table_alias,omitempty"`
	Lazy       bool      `json:"is_lazy,omitempty"`
	Aggregate  Aggregate `json:"aggregate,omitempty"`
}

// Filter restricts rows. Value holds a scalar or, for IN operators, a slice.
type Filter struct {
	Path        string    `json:"field_name"`
	Operator    Operator  `json:"filter_type"`
	Value       any       `json:"object_to_compare"`
	Connector   Connector `json:"operator_type,omitempty"`
	OpenParens  int       `json:"start_parenthesis,omitempty"`
	CloseParens int       `json:"end_parenthesis,omitempty"`
	TableAlias  string    `json:"table_alias,omitempty"`
}

// OrderBy sorts on one path.
type OrderBy struct {
	Path       string    `json:"field_name"`
	Direction  Direction `json:"order_by_type,omitempty"`
	TableAlias string    `json:"table_alias,omitempty"`
}

// GroupBy groups on one path.
type GroupBy struct {
	Path       string `json:"field_name"`
	TableAlias string `json:"table_alias,omitempty"`
}

// Join follows a relation path. Alias, ParentTable, ParentColumn and ChildColumn
// are computed during translation when left empty.
type Join struct {
	Path         string   `json:"field_name"`
	Kind         JoinKind `json:"join_type,omitempty"`
	Alias        string   `json:"table_alias,omitempty"`
	ParentTable  string   `json:"parent_table,omitempty"`
	ParentColumn string   `json:"parent_column,omitempty"`
	ChildColumn  string   `json:"id_column,omitempty"`
}

// Query groups the clauses of one select.
type Query struct {
	Fields  []Field   `json:"fields,omitempty"`
	Filters []Filter  `json:"filters,omitempty"`
	Joins   []Join    `json:"joins,omitempty"`
	GroupBy []GroupBy `json:"group_by,omitempty"`
	OrderBy []OrderBy `json:"order_by,omitempty"`
	Offset  *uint64   `json:"offset,omitempty"`
	Limit   *uint64   `json:"limit,omitempty"`
}

// Type identifies a clause kind.
type Type int

const (
	FieldClause Type = iota
	FilterClause
	JoinClause
	GroupByClause
	OrderByClause
)

func (t Type) String() string {
	switch t {
	case FieldClause:
		return "field"
	case FilterClause:
		return "filter"
	case JoinClause:
		return "join"
	case GroupByClause:
		return "group_by"
	case OrderByClause:
		return "order_by"
	default:
		return "unknown"
	}
}
