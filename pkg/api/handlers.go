package api

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sahithikokkula/sqlite-hll/pkg/estimator"
	"github.com/sahithikokkula/sqlite-hll/pkg/executor"
	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
	"github.com/sahithikokkula/sqlite-hll/pkg/planner"
	"github.com/sahithikokkula/sqlite-hll/pkg/sketches"
	"github.com/sahithikokkula/sqlite-hll/pkg/storage"
)

const defaultConfidence = 0.95

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

	errUnknownColumn = errors.New("unknown table or column")
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY 1`)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	defer rows.Close()
	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		tables = append(tables, name)
	}
	writeJSON(w, http.StatusOK, JSON{"tables": tables})
}

type QueryRequest struct {
	SQL         string  `json:"sql"`
	PreferExact bool    `json:"prefer_exact"`
	Explain     bool    `json:"explain"`
	Confidence  float64 `json:"confidence"`
}

type QueryResponse struct {
	Status string           `json:"status"`
	Plan   *planner.Plan    `json:"plan,omitempty"`
	Result []map[string]any `json:"result,omitempty"`
	Meta   map[string]any   `json:"meta,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (h *Handler) PostQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	plan, err := h.planner.Plan(req.SQL, req.PreferExact)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	slog.Debug("Planned query", slog.String("plan_type", string(plan.Type)), slog.String("sql", normalizeSQL(plan.SQL)))

	if req.Explain {
		writeJSON(w, http.StatusOK, QueryResponse{Status: "ok", Plan: plan})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	executionStart := time.Now()

	rows, meta, err := executor.Execute(ctx, h.db, plan, executor.Options{
		StandardError: h.ext.Manager().StandardError(),
		Confidence:    confidenceOrDefault(req.Confidence),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, QueryResponse{
			Status: "error",
			Error:  err.Error(),
			Plan:   plan,
		})
		return
	}

	meta["execution_ms"] = time.Since(executionStart).Milliseconds()

	writeJSON(w, http.StatusOK, QueryResponse{
		Status: "ok",
		Plan:   plan,
		Result: rows,
		Meta:   meta,
	})
}

type EstimateRequest struct {
	Values     []any   `json:"values"`
	Confidence float64 `json:"confidence"`
}

// PostEstimate feeds a JSON array through the aggregate as a single group.
// Integral numbers are integers, other numbers floats, strings text.
func (h *Handler) PostEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	values, err := toDriverValues(req.Values)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	estimate, err := h.ext.Estimate(values)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	var (
		manager = h.ext.Manager()
		ci      = estimator.SketchCI(estimate, manager.StandardError(), confidenceOrDefault(req.Confidence))
	)

	writeJSON(w, http.StatusOK, sketches.EstimateResult{
		Estimate:      estimate,
		StandardError: ci.RelativeError,
		Confidence:    ci.ConfidenceLevel,
		Lower:         ci.Lower,
		Upper:         ci.Upper,
		SketchType:    string(sketches.HyperLogLogType),
		Registers:     1 << manager.Precision(),
	})
}

func toDriverValues(raw []any) ([]driver.Value, error) {
	values := make([]driver.Value, len(raw))

	for idx, v := range raw {
		switch typed := v.(type) {
		case nil:
			values[idx] = nil
		case string:
			values[idx] = typed
		case json.Number:
			if i, err := typed.Int64(); err == nil {
				values[idx] = i
			} else if f, err := typed.Float64(); err == nil {
				values[idx] = f
			} else {
				return nil, fmt.Errorf("value %d: %w", idx, err)
			}
		default:
			return nil, fmt.Errorf("value %d: unsupported JSON type %T", idx, v)
		}
	}

	return values, nil
}

type AccuracyRequest struct {
	Table      string  `json:"table"`
	Column     string  `json:"column"`
	Confidence float64 `json:"confidence"`
}

// PostAccuracy answers the same distinct count with the sketch and exactly,
// then records how far apart they were.
func (h *Handler) PostAccuracy(w http.ResponseWriter, r *http.Request) {
	var req AccuracyRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if !identifierRe.MatchString(req.Table) || !identifierRe.MatchString(req.Column) {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "table and column must be plain identifiers"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	run, err := h.measureAccuracy(ctx, req.Table, req.Column)
	if errors.Is(err, errUnknownColumn) {
		writeJSON(w, http.StatusNotFound, JSON{"error": err.Error()})
		return
	} else if err != nil {
		slog.Error("Accuracy run failed", slog.String("err", err.Error()), slog.String("table", req.Table), slog.String("column", req.Column))
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	if run.ID, err = storage.InsertAccuracyRun(ctx, h.db, run); err != nil {
		slog.Error("Recording accuracy run failed", slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, JSON{
		"status":   "ok",
		"run":      run,
		"interval": estimator.SketchCI(run.ApproxDistinct, run.StdError, confidenceOrDefault(req.Confidence)),
	})
}

func (h *Handler) measureAccuracy(ctx context.Context, table, column string) (storage.AccuracyRun, error) {
	run := storage.AccuracyRun{
		Table:    table,
		Column:   column,
		StdError: h.ext.Manager().StandardError(),
	}

	// SQLite reads an unknown double-quoted identifier as a string literal, so
	// the column has to be checked up front.
	var found int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&found); err != nil {
		return run, err
	} else if found == 0 {
		return run, fmt.Errorf("%w: %s.%s", errUnknownColumn, table, column)
	}

	approxStart := time.Now()
	approxQuery := fmt.Sprintf(`SELECT %s("%s") FROM "%s"`, extension.FunctionName, column, table)
	if err := h.db.QueryRowContext(ctx, approxQuery).Scan(&run.ApproxDistinct); err != nil {
		return run, fmt.Errorf("approximate count: %w", err)
	}
	run.ApproxMillis = time.Since(approxStart).Milliseconds()

	exactStart := time.Now()
	exactQuery := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT "%s") FROM "%s"`, column, table)
	if err := h.db.QueryRowContext(ctx, exactQuery).Scan(&run.RowCount, &run.ExactDistinct); err != nil {
		return run, fmt.Errorf("exact count: %w", err)
	}
	run.ExactMillis = time.Since(exactStart).Milliseconds()

	run.RelativeError = estimator.RelativeDeviation(run.ApproxDistinct, float64(run.ExactDistinct))
	if math.IsInf(run.RelativeError, 0) {
		// JSON cannot carry +Inf.
		run.RelativeError = 1
	}

	return run, nil
}

func (h *Handler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "table parameter required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	runs, err := storage.ListAccuracyRuns(ctx, h.db, table)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, JSON{"runs": runs})
}

func confidenceOrDefault(c float64) float64 {
	if c <= 0 || c >= 1 {
		return defaultConfidence
	}
	return c
}

// normalizeSQL collapses whitespace for log lines.
func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
