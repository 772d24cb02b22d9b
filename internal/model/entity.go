// Package model defines entity metadata: field definitions, entity types and
// the conversion between flat field maps and entity values.
package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Entity is implemented by every persisted type. EntityType must not
// dereference its receiver so it can be called on a nil pointer.
type Entity interface {
	EntityType() *EntityType
}

// EntityType is the metadata of one entity: its table, identifier field and
// ordered field definitions.
type EntityType struct {
	Name    string
	Table   string
	IDField string
	Fields  Fields
	New     func() Entity
}

// ModelFields returns the ordered field definitions.
func (et *EntityType) ModelFields() Fields {
	return et.Fields
}

// IDFieldName returns the logical name of the identifier field.
func (et *EntityType) IDFieldName() string {
	return et.IDField
}

// IDColumn returns the database column of the identifier field.
func (et *EntityType) IDColumn() string {
	def, ok := et.Fields.Get(et.IDField)
	if !ok {
		return et.IDField
	}
	return def.Column
}

// Field looks up a field definition by logical name.
func (et *EntityType) Field(name string) (FieldDefinition, bool) {
	return et.Fields.Get(name)
}

// ScalarFields returns the non-relation fields in declaration order.
func (et *EntityType) ScalarFields() []string {
	var out []string
	for _, name := range et.Fields.Names() {
		if def, _ := et.Fields.Get(name); !def.IsRelation() {
			out = append(out, name)
		}
	}
	return out
}

// RelationFields returns the relation fields in declaration order.
func (et *EntityType) RelationFields() []string {
	var out []string
	for _, name := range et.Fields.Names() {
		if def, _ := et.Fields.Get(name); def.IsRelation() {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks the structural rules of the metadata.
func (et *EntityType) Validate() error {
	var errs []error
	if et.Table == "" {
		errs = append(errs, fmt.Errorf("%s: table is required", et.Name))
	}
	if et.New == nil {
		errs = append(errs, fmt.Errorf("%s: factory is required", et.Name))
	}
	var pks []string
	for _, name := range et.Fields.Names() {
		def, _ := et.Fields.Get(name)
		if def.PrimaryKey {
			pks = append(pks, name)
		}
		if def.IsRelation() && def.Target == nil {
			errs = append(errs, fmt.Errorf("%s.%s: relation to %s has no target", et.Name, name, def.ReferencedTable))
		}
	}
	switch {
	case len(pks) != 1:
		errs = append(errs, fmt.Errorf("%s: expected exactly one primary key, found %d", et.Name, len(pks)))
	case pks[0] != et.IDField:
		errs = append(errs, fmt.Errorf("%s: primary key %q does not match id field %q", et.Name, pks[0], et.IDField))
	}
	return errors.Join(errs...)
}

// FromFieldMap builds an entity from a map keyed by logical field name.
// Nested maps under relation fields are built by the related entity type.
func (et *EntityType) FromFieldMap(values map[string]any) (Entity, error) {
	input := make(map[string]any, len(values))
	for name, v := range values {
		def, ok := et.Fields.Get(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown field %q", et.Name, name)
		}
		nested, isMap := v.(map[string]any)
		if !def.IsRelation() || !isMap {
			input[name] = v
			continue
		}
		target := def.TargetType()
		if target == nil {
			return nil, fmt.Errorf("%s.%s: relation has no target", et.Name, name)
		}
		child, err := target.FromFieldMap(nested)
		if err != nil {
			return nil, err
		}
		input[name] = child
	}

	entity := et.New()
	if err := decode(input, entity, true); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", et.Name, err)
	}
	return entity, nil
}

// SetID assigns the identifier field of e.
func SetID(e Entity, id any) error {
	et := e.EntityType()
	if err := decode(map[string]any{et.IDField: id}, e, false); err != nil {
		return fmt.Errorf("failed to set %s id: %w", et.Name, err)
	}
	return nil
}

// IDValue returns the identifier value of e.
func IDValue(e Entity) (any, error) {
	values, err := FieldValues(e)
	if err != nil {
		return nil, err
	}
	return values[e.EntityType().IDField], nil
}

// IsZero reports whether v is nil or the zero value of its type.
func IsZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// FieldValues reads the logical field values of e using the mapstructure tags
// of its struct fields. Nil pointers are reported as untyped nil.
func FieldValues(e Entity) (map[string]any, error) {
	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("entity must be a non-nil pointer, got %T", e)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must point to a struct, got %T", e)
	}

	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			if fv.IsNil() {
				out[name] = nil
				continue
			}
		}
		out[name] = fv.Interface()
	}
	return out, nil
}

func decode(input map[string]any, target any, errorUnused bool) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      errorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesToStringHook,
			mapstructure.StringToTimeHookFunc("2006-01-02 15:04:05"),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func bytesToStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from == reflect.TypeOf([]byte(nil)) && to.Kind() == reflect.String {
		return string(data.([]byte)), nil
	}
	return data, nil
}
