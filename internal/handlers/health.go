package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports whether the database answers.
func Health(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}

// TestDB runs a trivial query and surfaces the raw database error. It is
// only mounted outside production.
func TestDB(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users int
		if err := db.QueryRowContext(r.Context(), `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Database test failed", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, TestDBResponse{
			Success:   true,
			Users:     users,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}

type TestDBResponse struct {
	Success   bool   `json:"success"`
	Users     int    `json:"users"`
	Timestamp string `json:"timestamp"`
}
