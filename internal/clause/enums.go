package clause

import (
	"fmt"
	"strings"
)

// Operator is a filter comparison.
type Operator int

const (
	Equals Operator = iota
	NotEquals
	Like
	NotLike
	In
	NotIn
	Less
	LessOrEqual
	Greater
	GreaterOrEqual
)

var operatorNames = map[Operator]string{
	Equals:         "EQUALS",
	NotEquals:      "NOT_EQUALS",
	Like:           "LIKE",
	NotLike:        "NOT_LIKE",
	In:             "IN",
	NotIn:          "NOT_IN",
	Less:           "LESS_THAN",
	LessOrEqual:    "LESS_THAN_OR_EQUALS",
	Greater:        "GREATER_THAN",
	GreaterOrEqual: "GREATER_THAN_OR_EQUALS",
}

func (o Operator) String() string { return nameOf(operatorNames, o) }

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operator) UnmarshalText(b []byte) error { return parseName(operatorNames, string(b), o) }

// Connector joins a filter to the previous one.
type Connector int

const (
	And Connector = iota
	Or
)

var connectorNames = map[Connector]string{And: "AND", Or: "OR"}

func (c Connector) String() string { return nameOf(connectorNames, c) }

// MarshalText implements encoding.TextMarshaler.
func (c Connector) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Connector) UnmarshalText(b []byte) error { return parseName(connectorNames, string(b), c) }

// Direction is a sort order.
type Direction int

const (
	Asc Direction = iota
	Desc
)

var directionNames = map[Direction]string{Asc: "ASC", Desc: "DESC"}

func (d Direction) String() string { return nameOf(directionNames, d) }

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error { return parseName(directionNames, string(b), d) }

// JoinKind is the SQL join type.
type JoinKind int

const (
	Inner JoinKind = iota
	Left
	Right
)

var joinKindNames = map[JoinKind]string{Inner: "INNER", Left: "LEFT", Right: "RIGHT"}

func (k JoinKind) String() string { return nameOf(joinKindNames, k) }

// MarshalText implements encoding.TextMarshaler.
func (k JoinKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *JoinKind) UnmarshalText(b []byte) error { return parseName(joinKindNames, string(b), k) }

// Aggregate wraps a selected column in an aggregate function.
type Aggregate int

const (
	NoAggregate Aggregate = iota
	Count
	Sum
	Avg
	Min
	Max
)

var aggregateNames = map[Aggregate]string{
	NoAggregate: "",
	Count:       "COUNT",
	Sum:         "SUM",
	Avg:         "AVG",
	Min:         "MIN",
	Max:         "MAX",
}

func (a Aggregate) String() string { return nameOf(aggregateNames, a) }

// MarshalText implements encoding.TextMarshaler.
func (a Aggregate) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Aggregate) UnmarshalText(b []byte) error { return parseName(aggregateNames, string(b), a) }

func nameOf[T comparable](names map[T]string, v T) string {
	if name, ok := names[v]; ok {
		return name
	}
	return fmt.Sprintf("%T(%d)", v, any(v))
}

func parseName[T comparable](names map[T]string, s string, out *T) error {
	s = strings.ToUpper(strings.TrimSpace(s))
	for v, name := range names {
		if name == s {
			*out = v
			return nil
		}
	}
	var zero T
	return fmt.Errorf("invalid %T %q", zero, s)
}
