package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger - проверка доступности БД, её реализует *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler обрабатывает GET /health
func HealthHandler(log *slog.Logger, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.HealthHandler"
		logger := log.With(slog.String("op", op))

		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("database is unavailable", slog.Any("error", err))
			writeJSON(w, logger, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
			return
		}
		writeJSON(w, logger, http.StatusOK, HealthResponse{Status: "healthy"})
	}
}
