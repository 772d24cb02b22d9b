package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jipp1987/PruebaRestService/internal/model"
	"github.com/jipp1987/PruebaRestService/internal/sqlutil"
)

// PlanInsert builds SQL for inserting one entity. Columns follow field
// declaration order; a zero identifier is left to the database.
func PlanInsert(e model.Entity) (SQLQuery, error) {
	et := e.EntityType()
	columns, values, err := columnValues(e, true)
	if err != nil {
		return SQLQuery{}, err
	}
	if len(columns) == 0 {
		query := fmt.Sprintf("INSERT INTO %s () VALUES ()", sqlutil.QuoteIdentifier(et.Table))
		return SQLQuery{SQL: query, Args: nil}, nil
	}

	query, args, err := sq.Insert(sqlutil.QuoteIdentifier(et.Table)).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanUpdate builds SQL for updating every non-identifier field of e by its identifier.
func PlanUpdate(e model.Entity) (SQLQuery, error) {
	et := e.EntityType()
	id, err := requireID(e)
	if err != nil {
		return SQLQuery{}, err
	}
	columns, values, err := columnValues(e, false)
	if err != nil {
		return SQLQuery{}, err
	}
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("update set cannot be empty")
	}

	update := sq.Update(sqlutil.QuoteIdentifier(et.Table))
	for i, col := range columns {
		update = update.Set(col, values[i])
	}
	query, args, err := update.
		Where(sq.Eq{sqlutil.QuoteIdentifier(et.IDColumn()): id}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDelete builds SQL for deleting e by its identifier.
func PlanDelete(e model.Entity) (SQLQuery, error) {
	et := e.EntityType()
	id, err := requireID(e)
	if err != nil {
		return SQLQuery{}, err
	}
	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(et.Table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(et.IDColumn()): id}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func requireID(e model.Entity) (interface{}, error) {
	id, err := model.IDValue(e)
	if err != nil {
		return nil, err
	}
	if model.IsZero(id) {
		return nil, fmt.Errorf("%s requires a non-zero %s", e.EntityType().Name, e.EntityType().IDField)
	}
	return id, nil
}

// columnValues returns quoted columns and bound values in field order.
// Related entities contribute their identifier; nil relations become NULL.
func columnValues(e model.Entity, withID bool) ([]string, []interface{}, error) {
	et := e.EntityType()
	values, err := model.FieldValues(e)
	if err != nil {
		return nil, nil, err
	}

	var columns []string
	var args []interface{}
	for _, name := range et.Fields.Names() {
		def, _ := et.Field(name)
		v := values[name]
		if name == et.IDField {
			if !withID || model.IsZero(v) {
				continue
			}
		}
		if def.IsRelation() {
			if v, err = relationID(v); err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", et.Name, name, err)
			}
		} else if model.IsZero(v) && def.Default != nil {
			v = def.Default
		}
		columns = append(columns, sqlutil.QuoteIdentifier(def.Column))
		args = append(args, v)
	}
	return columns, args, nil
}

func relationID(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	related, ok := v.(model.Entity)
	if !ok {
		return v, nil
	}
	id, err := model.IDValue(related)
	if err != nil {
		return nil, err
	}
	if model.IsZero(id) {
		return nil, nil
	}
	return id, nil
}
