// Package sqltype maps MySQL column types to the logical kinds used by entity metadata.
// The kind drives how scanned values are normalised before entity decoding.
package sqltype

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the logical category of a column value.
type Kind int

const (
	// String is the default kind for text, enums and unknown SQL types.
	String Kind = iota
	// Int represents integer numeric types.
	Int
	// Float represents floating-point numeric types.
	Float
	// Decimal represents fixed-point numeric types.
	Decimal
	// Bool represents boolean types.
	Bool
	// Bytes represents binary column types.
	Bytes
	// Time represents date and time types.
	Time
	// Entity marks a field holding a related entity.
	Entity
)

// Type is a parsed DDL-style column type such as VARCHAR(80) or DECIMAL(10,2).
type Type struct {
	Kind      Kind
	Length    int
	Precision int
	Scale     int
}

// Parse converts a SQL type string into its logical kind and size modifiers.
// The input is case-insensitive. Unknown types map to String.
func Parse(sqlType string) (Type, error) {
	base := strings.TrimSpace(sqlType)
	var mods []int
	if idx := strings.Index(base, "("); idx != -1 {
		end := strings.Index(base, ")")
		if end < idx {
			return Type{}, fmt.Errorf("malformed sql type %q", sqlType)
		}
		for _, part := range strings.Split(base[idx+1:end], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return Type{}, fmt.Errorf("malformed sql type %q: %w", sqlType, err)
			}
			mods = append(mods, n)
		}
		base = base[:idx]
	}

	t := Type{Kind: kindOf(base)}
	switch t.Kind {
	case Decimal, Float:
		if len(mods) > 0 {
			t.Precision = mods[0]
		}
		if len(mods) > 1 {
			t.Scale = mods[1]
		}
	default:
		if len(mods) > 0 {
			t.Length = mods[0]
		}
	}
	return t, nil
}

func kindOf(base string) Kind {
	switch strings.ToUpper(strings.TrimSpace(base)) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT",
		"INTEGER", "BIGINT", "SERIAL", "BIT":
		return Int
	case "FLOAT", "DOUBLE", "REAL":
		return Float
	case "DECIMAL", "NUMERIC", "DEC":
		return Decimal
	case "BOOL", "BOOLEAN":
		return Bool
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return Bytes
	case "DATE", "DATETIME", "TIMESTAMP", "TIME":
		return Time
	default:
		return String
	}
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case Bytes:
		return "bytes"
	case Time:
		return "time"
	case Entity:
		return "entity"
	default:
		return "string"
	}
}

// Normalize converts a raw driver value into the representation expected for kind.
// The MySQL driver returns text and numeric columns as []byte; these become strings
// (or numbers for numeric kinds) so that weak decoding can place them on struct fields.
func Normalize(kind Kind, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch kind {
	case Bytes:
		out := make([]byte, len(b))
		copy(out, b)
		return out
	case Int:
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	case Float, Decimal:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case Bool:
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n != 0
		}
	case Time:
		if ts, err := time.Parse("2006-01-02 15:04:05", string(b)); err == nil {
			return ts
		}
	}
	return string(b)
}
