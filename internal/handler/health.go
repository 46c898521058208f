package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and the state of the backing services.
type HealthHandler struct {
	DB    Pinger
	Redis *redis.Client // nil when caching is off
}

// Live answers as long as the process serves requests.
func Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready pings MySQL and, when configured, Redis.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	checks := echo.Map{"mysql": "ok"}
	if err := h.DB.PingContext(ctx); err != nil {
		checks["mysql"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			// the cache is optional
			checks["redis"] = err.Error()
		}
	}
	return c.JSON(status, checks)
}
