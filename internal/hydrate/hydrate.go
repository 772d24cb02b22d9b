// Package hydrate rebuilds nested entity graphs from flat result rows using
// the alias map produced by the translator.
package hydrate

import (
	"fmt"
	"strings"

	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/model"
	"github.com/jipp1987/PruebaRestService/internal/sqltype"
	"github.com/jipp1987/PruebaRestService/internal/translator"
)

// ScanRows reads every row into a map keyed by column label.
func ScanRows(rows dbexec.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	return results, rows.Err()
}

// Rehydrate converts alias-keyed rows into entities of type base.
// An empty input yields an empty, non-nil slice.
func Rehydrate(rows []map[string]interface{}, aliases translator.AliasMap, base *model.EntityType) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(rows))
	for i, row := range rows {
		tree, err := Nest(row, aliases)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		entity, err := base.FromFieldMap(tree)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// Nest turns one alias-keyed row into a map keyed by logical field name.
// Fields with a prefix are placed in intermediate maps along the prefix path;
// nested maps holding only nil values (unmatched outer joins) become nil.
func Nest(row map[string]interface{}, aliases translator.AliasMap) (map[string]interface{}, error) {
	root := make(map[string]interface{}, len(row))
	for alias, value := range row {
		entry, ok := aliases[alias]
		if !ok {
			return nil, fmt.Errorf("column %q is not in the alias map", alias)
		}
		if entry.Entity != nil {
			if def, found := entry.Entity.Field(entry.Field); found {
				value = sqltype.Normalize(def.Type, value)
			}
		}

		target := root
		if entry.Prefix != "" {
			for _, segment := range strings.Split(entry.Prefix, ".") {
				child, isMap := target[segment].(map[string]interface{})
				if !isMap {
					child = make(map[string]interface{})
					target[segment] = child
				}
				target = child
			}
		}
		target[entry.Field] = value
	}

	for key, value := range root {
		if child, isMap := value.(map[string]interface{}); isMap && prune(child) {
			root[key] = nil
		}
	}
	return root, nil
}

// prune nils out empty nested maps and reports whether m holds only nil values.
func prune(m map[string]interface{}) bool {
	empty := true
	for key, value := range m {
		if child, isMap := value.(map[string]interface{}); isMap {
			if prune(child) {
				m[key] = nil
				continue
			}
			empty = false
			continue
		}
		if value != nil {
			empty = false
		}
	}
	return empty
}
