package storage

import (
	"context"
	"database/sql"
)

func EnsureMetaTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hll_accuracy_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            table_name TEXT NOT NULL,
            column_name TEXT NOT NULL,
            row_count INTEGER NOT NULL,
            exact_distinct INTEGER NOT NULL,
            approx_distinct REAL NOT NULL,
            relative_error REAL NOT NULL,
            std_error REAL NOT NULL,
            approx_ms INTEGER NOT NULL,
            exact_ms INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS hll_accuracy_runs_table
            ON hll_accuracy_runs(table_name, created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// AccuracyRun compares approx_count_distinct against COUNT(DISTINCT) for one column.
type AccuracyRun struct {
	ID             int64   `json:"id"`
	Table          string  `json:"table"`
	Column         string  `json:"column"`
	RowCount       int64   `json:"row_count"`
	ExactDistinct  int64   `json:"exact_distinct"`
	ApproxDistinct float64 `json:"approx_distinct"`
	RelativeError  float64 `json:"relative_error"`
	StdError       float64 `json:"std_error"`
	ApproxMillis   int64   `json:"approx_ms"`
	ExactMillis    int64   `json:"exact_ms"`
	CreatedAt      int64   `json:"created_at"`
}

// InsertAccuracyRun records a run and returns its id.
func InsertAccuracyRun(ctx context.Context, db *sql.DB, run AccuracyRun) (int64, error) {
	res, err := db.ExecContext(ctx, `
        INSERT INTO hll_accuracy_runs(table_name, column_name, row_count, exact_distinct,
            approx_distinct, relative_error, std_error, approx_ms, exact_ms, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		run.Table, run.Column, run.RowCount, run.ExactDistinct,
		run.ApproxDistinct, run.RelativeError, run.StdError, run.ApproxMillis, run.ExactMillis)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAccuracyRuns returns all runs for a table, newest first
func ListAccuracyRuns(ctx context.Context, db *sql.DB, table string) ([]AccuracyRun, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT id, column_name, row_count, exact_distinct, approx_distinct,
               relative_error, std_error, approx_ms, exact_ms,
               CAST(strftime('%s', created_at) AS INTEGER) AS created_at
        FROM hll_accuracy_runs
        WHERE table_name = ?
        ORDER BY created_at DESC, id DESC`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []AccuracyRun{}
	for rows.Next() {
		run := AccuracyRun{Table: table}

		err := rows.Scan(&run.ID, &run.Column, &run.RowCount, &run.ExactDistinct, &run.ApproxDistinct,
			&run.RelativeError, &run.StdError, &run.ApproxMillis, &run.ExactMillis, &run.CreatedAt)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}
