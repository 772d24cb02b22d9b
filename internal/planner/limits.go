package planner

import (
	"fmt"
	"strings"

	"github.com/jipp1987/PruebaRestService/internal/translator"
)

// PlanLimits defines cost limits applied during planning. Zero disables a limit.
type PlanLimits struct {
	MaxJoins     int
	MaxJoinDepth int
	MaxRows      uint64
}

// PlanCost captures the estimated cost of a select.
type PlanCost struct {
	Joins int
	Depth int
	Rows  uint64
}

// EstimateCost derives the cost of a translated query. Depth is the longest
// relation path joined; Rows is the requested limit, zero when unbounded.
func EstimateCost(res *translator.Result) PlanCost {
	cost := PlanCost{Joins: len(res.Joins)}
	for _, j := range res.Joins {
		if d := strings.Count(j.Path, ".") + 1; d > cost.Depth {
			cost.Depth = d
		}
	}
	if res.Limit != nil {
		cost.Rows = *res.Limit
	}
	return cost
}

func validateLimits(cost PlanCost, limits PlanLimits) error {
	if limits.MaxJoins > 0 && cost.Joins > limits.MaxJoins {
		return fmt.Errorf("query exceeds maximum joins of %d (joins: %d)", limits.MaxJoins, cost.Joins)
	}
	if limits.MaxJoinDepth > 0 && cost.Depth > limits.MaxJoinDepth {
		return fmt.Errorf("query exceeds maximum join depth of %d (depth: %d)", limits.MaxJoinDepth, cost.Depth)
	}
	if limits.MaxRows > 0 && cost.Rows > limits.MaxRows {
		return fmt.Errorf("query exceeds maximum rows of %d (requested: %d)", limits.MaxRows, cost.Rows)
	}
	return nil
}
