package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/sahithikokkula/sqlite-hll/pkg/aggregate"
	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
	"github.com/sahithikokkula/sqlite-hll/pkg/storage"
)

func newServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()

	manager, err := aggregate.NewManager(aggregate.DefaultPolicy())
	require.NoError(t, err)

	ext := extension.New(manager, nil)
	require.NoError(t, extension.Register(ext))

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, storage.EnsureMetaTables(context.Background(), db))

	_, err = db.Exec(`CREATE TABLE visits (country TEXT, user_id INTEGER, payload)`)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		_, err := db.Exec(`INSERT INTO visits (country, user_id) VALUES (?, ?)`, []string{"US", "IN", "DE"}[i%3], i%120)
		require.NoError(t, err)
	}

	r := mux.NewRouter()
	RegisterRoutes(r, db, ext, 10*time.Second)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, db
}

func post(t *testing.T, srv *httptest.Server, path string, body any) (int, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthAndTables(t *testing.T) {
	srv, _ := newServer(t)

	status, body := get(t, srv, "/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	status, body = get(t, srv, "/tables")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["tables"], "visits")
	require.Contains(t, body["tables"], "hll_accuracy_runs")
}

func TestPostQueryRewritesDistinct(t *testing.T) {
	srv, _ := newServer(t)

	status, body := post(t, srv, "/query", QueryRequest{SQL: `SELECT COUNT(DISTINCT user_id) AS users FROM visits`})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body["status"])

	plan := body["plan"].(map[string]any)
	require.Equal(t, "sketch", plan["type"])

	result := body["result"].([]any)
	require.Len(t, result, 1)
	require.InDelta(t, 120.0, result[0].(map[string]any)["users"], 3)
}

func TestPostQueryExplain(t *testing.T) {
	srv, _ := newServer(t)

	status, body := post(t, srv, "/query", QueryRequest{SQL: `SELECT COUNT(DISTINCT user_id) FROM visits`, Explain: true})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, body["result"])
	require.Equal(t, "SELECT approx_count_distinct(user_id) FROM visits", body["plan"].(map[string]any)["sql"])
}

func TestPostQueryErrors(t *testing.T) {
	srv, _ := newServer(t)

	status, _ := post(t, srv, "/query", QueryRequest{SQL: ""})
	require.Equal(t, http.StatusBadRequest, status)

	status, body := post(t, srv, "/query", QueryRequest{SQL: `SELECT * FROM nowhere`})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Equal(t, "error", body["status"])
}

func TestPostEstimate(t *testing.T) {
	srv, _ := newServer(t)

	values := make([]any, 0, 1100)
	for i := 1; i <= 1000; i++ {
		values = append(values, i)
	}
	values = append(values, nil, "a", "a", 1.5, nil)

	status, body := post(t, srv, "/estimate", map[string]any{"values": values})
	require.Equal(t, http.StatusOK, status)

	estimate := body["estimate"].(float64)
	require.GreaterOrEqual(t, estimate, 952.0)
	require.LessOrEqual(t, estimate, 1052.0)
	require.Equal(t, "hyperloglog", body["sketch_type"])
	require.Equal(t, float64(1<<15), body["registers"])
	require.Less(t, body["ci_low"].(float64), estimate)
	require.Greater(t, body["ci_high"].(float64), estimate)
}

func TestPostEstimateEmpty(t *testing.T) {
	srv, _ := newServer(t)

	status, body := post(t, srv, "/estimate", map[string]any{"values": []any{}})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 0.0, body["estimate"])
}

func TestPostEstimateRejectsBooleans(t *testing.T) {
	srv, _ := newServer(t)

	status, body := post(t, srv, "/estimate", map[string]any{"values": []any{1, true}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body["error"], "value 1")
}

func TestAccuracyRoundTrip(t *testing.T) {
	srv, _ := newServer(t)

	status, body := post(t, srv, "/accuracy", AccuracyRequest{Table: "visits", Column: "user_id"})
	require.Equal(t, http.StatusOK, status)

	run := body["run"].(map[string]any)
	require.Equal(t, 120.0, run["exact_distinct"])
	require.Equal(t, 200.0, run["row_count"])
	require.InDelta(t, 120.0, run["approx_distinct"], 3)
	require.Less(t, run["relative_error"].(float64), 0.03)

	status, body = get(t, srv, "/accuracy?table=visits")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["runs"], 1)
}

func TestAccuracyValidation(t *testing.T) {
	srv, db := newServer(t)

	status, _ := post(t, srv, "/accuracy", AccuracyRequest{Table: "visits; DROP TABLE visits", Column: "user_id"})
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, srv, "/accuracy", AccuracyRequest{Table: "visits", Column: "missing"})
	require.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, srv, "/accuracy")
	require.Equal(t, http.StatusBadRequest, status)

	// Blob values abort the aggregate instead of being skipped.
	_, err := db.Exec(`INSERT INTO visits (country, user_id, payload) VALUES ('US', 1, x'00ff')`)
	require.NoError(t, err)

	status, body := post(t, srv, "/accuracy", AccuracyRequest{Table: "visits", Column: "payload"})
	require.Equal(t, http.StatusInternalServerError, status)
	require.Contains(t, body["error"], "blob values are not supported")
}

func TestPostEstimateHonoursConfidence(t *testing.T) {
	srv, _ := newServer(t)

	values := make([]any, 0, 500)
	for i := 0; i < 500; i++ {
		values = append(values, i)
	}

	_, wide := post(t, srv, "/estimate", EstimateRequest{Values: values, Confidence: 0.95})
	_, narrow := post(t, srv, "/estimate", EstimateRequest{Values: values, Confidence: 0.80})

	require.Equal(t, 0.8, narrow["confidence"])
	require.Equal(t, wide["estimate"], narrow["estimate"])
	require.Greater(t, narrow["ci_low"].(float64), wide["ci_low"].(float64))
	require.Less(t, narrow["ci_high"].(float64), wide["ci_high"].(float64))
}

func TestRequestBodyLimit(t *testing.T) {
	srv, _ := newServer(t)

	body := append([]byte(`{"values":[`), bytes.Repeat([]byte("1,"), maxRequestBytes/2)...)
	body = append(body, []byte("1]}")...)

	resp, err := http.Post(srv.URL+"/estimate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/query", "application/json", bytes.NewReader([]byte(`{"sql":`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
