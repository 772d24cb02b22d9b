package planner

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/jipp1987/PruebaRestService/internal/sqlutil"
	"github.com/jipp1987/PruebaRestService/internal/translator"
)

func appendOrderBy(builder sq.SelectBuilder, orders []translator.OrderBy) sq.SelectBuilder {
	if len(orders) == 0 {
		return builder
	}
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = sqlutil.QuoteColumn(o.TableAlias, o.Column) + " " + o.Direction.String()
	}
	return builder.OrderBy(parts...)
}

func appendGroupBy(builder sq.SelectBuilder, groups []translator.GroupBy) sq.SelectBuilder {
	if len(groups) == 0 {
		return builder
	}
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = sqlutil.QuoteColumn(g.TableAlias, g.Column)
	}
	return builder.GroupBy(parts...)
}
