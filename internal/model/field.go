package model

import (
	"fmt"

	"github.com/jipp1987/PruebaRestService/internal/sqltype"
)

// NumericRange holds precision and scale for fixed-point columns.
type NumericRange struct {
	Precision int
	Scale     int
}

// FieldDefinition describes one persisted attribute of an entity.
// A non-empty ReferencedTable marks the field as a relation; Target then
// yields a fresh instance of the related entity.
type FieldDefinition struct {
	Type            sqltype.Kind
	Column          string
	PrimaryKey      bool
	Mandatory       bool
	Length          int
	Range           *NumericRange
	ReferencedTable string
	Default         any
	Target          func() Entity
}

// Column builds a scalar field definition from a DDL-style type such as
// "VARCHAR(80)" or "DECIMAL(10,2)". It panics on a malformed type, since
// definitions are declared at package level.
func Column(column, sqlType string) FieldDefinition {
	t, err := sqltype.Parse(sqlType)
	if err != nil {
		panic(fmt.Sprintf("model: column %q: %v", column, err))
	}
	def := FieldDefinition{
		Type:   t.Kind,
		Column: column,
		Length: t.Length,
	}
	if t.Precision > 0 {
		def.Range = &NumericRange{Precision: t.Precision, Scale: t.Scale}
	}
	return def
}

// Relation builds a foreign-key field pointing at table.
func Relation(column, table string, target func() Entity) FieldDefinition {
	return FieldDefinition{
		Type:            sqltype.Entity,
		Column:          column,
		ReferencedTable: table,
		Target:          target,
	}
}

// PK marks the field as the primary key.
func (d FieldDefinition) PK() FieldDefinition {
	d.PrimaryKey = true
	d.Mandatory = true
	return d
}

// Required marks the field as mandatory.
func (d FieldDefinition) Required() FieldDefinition {
	d.Mandatory = true
	return d
}

// WithDefault sets the default value.
func (d FieldDefinition) WithDefault(v any) FieldDefinition {
	d.Default = v
	return d
}

// IsRelation reports whether the field references another entity.
func (d FieldDefinition) IsRelation() bool {
	return d.ReferencedTable != ""
}

// TargetType returns the metadata of the related entity, or nil for scalar fields.
func (d FieldDefinition) TargetType() *EntityType {
	if !d.IsRelation() || d.Target == nil {
		return nil
	}
	return d.Target().EntityType()
}

// Field pairs a logical name with its definition.
type Field struct {
	Name string
	Def  FieldDefinition
}

// F is shorthand for declaring a Field.
func F(name string, def FieldDefinition) Field {
	return Field{Name: name, Def: def}
}

// Fields is an ordered mapping from logical field name to definition.
type Fields struct {
	order []string
	defs  map[string]FieldDefinition
}

// NewFields builds an ordered field set. Duplicate names panic.
func NewFields(fields ...Field) Fields {
	fs := Fields{
		order: make([]string, 0, len(fields)),
		defs:  make(map[string]FieldDefinition, len(fields)),
	}
	for _, f := range fields {
		if _, dup := fs.defs[f.Name]; dup {
			panic(fmt.Sprintf("model: duplicate field %q", f.Name))
		}
		fs.order = append(fs.order, f.Name)
		fs.defs[f.Name] = f.Def
	}
	return fs
}

// Get looks up a field definition by logical name.
func (f Fields) Get(name string) (FieldDefinition, bool) {
	def, ok := f.defs[name]
	return def, ok
}

// Names returns the logical field names in declaration order.
func (f Fields) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Len returns the number of fields.
func (f Fields) Len() int {
	return len(f.order)
}
