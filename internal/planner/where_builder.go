package planner

import (
	"fmt"
	"reflect"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/sqlutil"
	"github.com/jipp1987/PruebaRestService/internal/translator"
)

// appendFilters renders the filter list as a single WHERE expression. Each
// predicate after the first is prefixed by its connector and wrapped in the
// requested parentheses; the parentheses must balance.
func appendFilters(builder sq.SelectBuilder, filters []translator.Filter) (sq.SelectBuilder, error) {
	if len(filters) == 0 {
		return builder, nil
	}
	where, err := BuildWhere(filters)
	if err != nil {
		return builder, err
	}
	return builder.Where(where), nil
}

// BuildWhere renders translated filters into a squirrel expression.
func BuildWhere(filters []translator.Filter) (sq.Sqlizer, error) {
	var sb strings.Builder
	var args []interface{}
	depth := 0

	for i, f := range filters {
		if i > 0 {
			sb.WriteString(" ")
			sb.WriteString(f.Connector.String())
			sb.WriteString(" ")
		}
		if f.OpenParens < 0 || f.CloseParens < 0 {
			return nil, dberrors.Translation("filter on %s.%s has a negative parenthesis count", f.TableAlias, f.Column)
		}
		sb.WriteString(strings.Repeat("(", f.OpenParens))
		depth += f.OpenParens

		pred, err := predicate(f)
		if err != nil {
			return nil, err
		}
		predSQL, predArgs, err := pred.ToSql()
		if err != nil {
			return nil, dberrors.Translation("filter on %s.%s: %v", f.TableAlias, f.Column, err)
		}
		sb.WriteString(predSQL)
		args = append(args, predArgs...)

		sb.WriteString(strings.Repeat(")", f.CloseParens))
		depth -= f.CloseParens
		if depth < 0 {
			return nil, dberrors.Translation("unbalanced parentheses in filters: closing before opening at filter %d", i)
		}
	}
	if depth != 0 {
		return nil, dberrors.Translation("unbalanced parentheses in filters: %d left open", depth)
	}
	return sq.Expr(sb.String(), args...), nil
}

func predicate(f translator.Filter) (sq.Sqlizer, error) {
	column := sqlutil.QuoteColumn(f.TableAlias, f.Column)
	switch f.Operator {
	case clause.Equals:
		return sq.Eq{column: f.Value}, nil
	case clause.NotEquals:
		return sq.NotEq{column: f.Value}, nil
	case clause.Like:
		return sq.Like{column: likePattern(f.Value)}, nil
	case clause.NotLike:
		return sq.NotLike{column: likePattern(f.Value)}, nil
	case clause.In:
		return sq.Eq{column: asList(f.Value)}, nil
	case clause.NotIn:
		return sq.NotEq{column: asList(f.Value)}, nil
	case clause.Less:
		return sq.Lt{column: f.Value}, nil
	case clause.LessOrEqual:
		return sq.LtOrEq{column: f.Value}, nil
	case clause.Greater:
		return sq.Gt{column: f.Value}, nil
	case clause.GreaterOrEqual:
		return sq.GtOrEq{column: f.Value}, nil
	default:
		return nil, dberrors.Translation("unsupported filter operator %s", f.Operator)
	}
}

// likePattern wraps the comparison value so LIKE matches it anywhere.
func likePattern(v interface{}) string {
	return fmt.Sprintf("%%%v%%", v)
}

// asList lifts scalar values into a one-element list for IN predicates.
func asList(v interface{}) interface{} {
	if v == nil {
		return []interface{}{nil}
	}
	switch v.(type) {
	case []byte, string:
		return []interface{}{v}
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return v
	}
	return []interface{}{v}
}
