package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sahithikokkula/sqlite-hll/pkg/extension"
	"github.com/sahithikokkula/sqlite-hll/pkg/planner"
)

type JSON map[string]any

// maxRequestBytes caps every JSON request body.
const maxRequestBytes = 4 << 20

func RegisterRoutes(r *mux.Router, db *sql.DB, ext *extension.Extension, queryTimeout time.Duration) {
	h := &Handler{
		db:           db,
		ext:          ext,
		planner:      planner.New(),
		queryTimeout: queryTimeout,
	}

	// Core endpoints
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/tables", h.ListTables).Methods(http.MethodGet)
	r.HandleFunc("/query", h.PostQuery).Methods(http.MethodPost)

	// Sketch endpoints
	r.HandleFunc("/estimate", h.PostEstimate).Methods(http.MethodPost)
	r.HandleFunc("/accuracy", h.PostAccuracy).Methods(http.MethodPost)
	r.HandleFunc("/accuracy", h.GetAccuracy).Methods(http.MethodGet)
}

type Handler struct {
	db           *sql.DB
	ext          *extension.Extension
	planner      *planner.Planner
	queryTimeout time.Duration
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, useNumber bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if useNumber {
		dec.UseNumber()
	}

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, JSON{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return false
	}

	return true
}
