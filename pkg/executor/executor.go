package executor

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/sahithikokkula/sqlite-hll/pkg/estimator"
	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
	"github.com/sahithikokkula/sqlite-hll/pkg/planner"
)

// Options controls how sketch results are annotated.
type Options struct {
	StandardError float64
	Confidence    float64
}

func Execute(ctx context.Context, db *sql.DB, plan *planner.Plan, opts Options) ([]map[string]any, map[string]any, error) {
	rows, err := db.QueryContext(ctx, plan.SQL)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	res := make([]map[string]any, 0, 64)

	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		m := map[string]any{}
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	meta := map[string]any{
		"plan_type":    string(plan.Type),
		"reason":       plan.Reason,
		"rows":         len(res),
		"sql_executed": plan.SQL,
	}

	if plan.Type == planner.PlanSketch {
		meta["relative_std_error"] = opts.StandardError
		meta["confidence"] = opts.Confidence

		enrichWithSketchCIs(res, cols, opts)
	}

	return res, meta, nil
}

func convertToFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// enrichWithSketchCIs adds <col>_ci_low and <col>_ci_high next to every
// approx_count_distinct column.
func enrichWithSketchCIs(results []map[string]any, cols []string, opts Options) {
	for _, col := range cols {
		if !isSketchColumn(col) {
			continue
		}

		for i := range results {
			estimate, ok := convertToFloat64(results[i][col])
			if !ok {
				continue
			}

			ci := estimator.SketchCI(estimate, opts.StandardError, opts.Confidence)
			results[i][col+"_ci_low"] = ci.Lower
			results[i][col+"_ci_high"] = ci.Upper
		}
	}
}

func isSketchColumn(col string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(col)), extension.FunctionName+"(")
}
