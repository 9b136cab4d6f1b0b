package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/config"
	"github.com/localnerve/tipjar/internal/services"
	"gorm.io/gorm"
)

// HealthHandler handles the service health route
type HealthHandler struct {
	DB     *gorm.DB
	Config *config.Config
}

// Get handles GET /api/health
// @Summary Health check
// @Description Report database, authorizer, and payment provider health
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Get(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Config, h.DB)

	status := fiber.StatusOK
	if result.Status != "healthy" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(result)
}
