package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"gorm.io/gorm"
)

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	baseHandler
	db      *gorm.DB
	version string
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(db *gorm.DB, version string) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(nil),
		db:          db,
		version:     version,
	}
}

// HealthCheck handles the health check endpoint
// @Summary Health Check
// @Tags Health
// @Produce json
// @Success 200 {object} dto.APIResponse "Service is healthy"
// @Failure 503 {object} dto.APIResponse "Database unreachable"
// @Router /api/v1/health [get]
func (h *HealthHandler) HealthCheck(c fiber.Ctx) error {
	data := fiber.Map{
		"status":    "healthy",
		"timestamp": h.now(),
		"version":   h.version,
	}

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			data["status"] = "unhealthy"
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Database unreachable", "DATABASE_UNAVAILABLE", data)
		}
		data["database"] = "up"
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Service is healthy", data)
}
