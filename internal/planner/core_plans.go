package planner

import (
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/sqlutil"
	"github.com/jipp1987/PruebaRestService/internal/translator"
)

// PlanSelect builds the SELECT statement for a translated query. Clauses are
// appended in the fixed order: fields, FROM, joins, WHERE, GROUP BY,
// ORDER BY, LIMIT/OFFSET.
func PlanSelect(res *translator.Result, limits PlanLimits) (SQLQuery, error) {
	if res == nil || res.Base == nil {
		return SQLQuery{}, fmt.Errorf("select requires a translated query")
	}
	if len(res.Fields) == 0 {
		return SQLQuery{}, dberrors.Translation("select on %s has no fields", res.Base.Name)
	}
	if err := validateLimits(EstimateCost(res), limits); err != nil {
		return SQLQuery{}, err
	}

	builder := sq.Select().From(sqlutil.QuoteIdentifier(res.Base.Table))
	builder = appendFields(builder, res.Fields)
	builder = appendJoins(builder, res.Joins)

	var err error
	if builder, err = appendFilters(builder, res.Filters); err != nil {
		return SQLQuery{}, err
	}
	builder = appendGroupBy(builder, res.GroupBy)
	builder = appendOrderBy(builder, res.OrderBy)
	builder = appendLimit(builder, res.Limit, res.Offset)

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func appendFields(builder sq.SelectBuilder, fields []translator.Field) sq.SelectBuilder {
	for _, f := range fields {
		expr := sqlutil.QuoteColumn(f.TableAlias, f.Column)
		if f.Aggregate != clause.NoAggregate {
			expr = fmt.Sprintf("%s(%s)", f.Aggregate, expr)
		}
		builder = builder.Column(expr + " AS " + sqlutil.QuoteIdentifier(f.Alias))
	}
	return builder
}

func appendJoins(builder sq.SelectBuilder, joins []translator.Join) sq.SelectBuilder {
	for _, j := range joins {
		builder = builder.JoinClause(fmt.Sprintf("%s JOIN %s %s ON %s = %s",
			j.Kind,
			sqlutil.QuoteIdentifier(j.Table),
			sqlutil.QuoteIdentifier(j.Alias),
			sqlutil.QuoteColumn(j.Alias, j.ChildColumn),
			sqlutil.QuoteColumn(j.ParentAlias, j.ParentColumn),
		))
	}
	return builder
}

func appendLimit(builder sq.SelectBuilder, limit, offset *uint64) sq.SelectBuilder {
	if limit != nil {
		builder = builder.Limit(*limit)
	}
	if offset != nil {
		// MySQL has no OFFSET without LIMIT.
		if limit == nil {
			builder = builder.Limit(math.MaxUint64)
		}
		builder = builder.Offset(*offset)
	}
	return builder
}
