package handler

import (
	"database/sql"
	"net/http"
	"time"
)

func HealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		dbStatus := "connected"
		code := http.StatusOK

		if err := db.PingContext(r.Context()); err != nil {
			status = "unhealthy"
			dbStatus = "disconnected"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, map[string]string{
			"status":    status,
			"database":  dbStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
