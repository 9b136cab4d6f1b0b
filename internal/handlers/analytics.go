package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/localnerve/tipjar/internal/utils"
	"gorm.io/gorm"
)

// AnalyticsHandler handles daily analytics routes
type AnalyticsHandler struct {
	DB *gorm.DB
}

// GetRange handles GET /api/analytics
// @Summary Daily analytics
// @Description Get the authenticated creator's daily analytics rows for a date range
// @Tags Analytics
// @Produce json
// @Param start query string false "Range start (RFC3339), default 30 days ago"
// @Param end query string false "Range end (RFC3339), default now"
// @Success 200 {array} models.DailyAnalytics
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /analytics [get]
func (h *AnalyticsHandler) GetRange(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "analytics.range")
	}

	startPtr, err := parseTimeQuery(c, "start")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid start parameter", fiber.StatusBadRequest, "analytics.range")
	}
	endPtr, err := parseTimeQuery(c, "end")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid end parameter", fiber.StatusBadRequest, "analytics.range")
	}

	end := time.Now().UTC()
	if endPtr != nil {
		end = *endPtr
	}
	start := end.AddDate(0, 0, -30)
	if startPtr != nil {
		start = *startPtr
	}

	rows, err := services.GetAnalyticsRange(h.DB, creator.ID, models.Day(start), models.Day(end))
	if err != nil {
		return serviceError(c, err, "analytics.range")
	}

	return utils.SuccessResponse(c, rows, fiber.StatusOK)
}

// NotificationHandler serves the per-creator notification feed
type NotificationHandler struct {
	DB    *gorm.DB
	State *state.Store
}

// Drain handles GET /api/notifications
// @Summary Drain notifications
// @Description Return and clear the authenticated creator's pending notifications, along with the recent-donation cache
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /notifications [get]
func (h *NotificationHandler) Drain(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "notifications.drain")
	}

	notifications := []state.Notification{}
	recent := []state.DonationSnapshot{}
	if h.State != nil {
		if feed := h.State.Drain(creator.ID); feed != nil {
			notifications = feed
		}
		if cache := h.State.RecentDonations(creator.ID); cache != nil {
			recent = cache
		}
	}

	return utils.SuccessResponse(c, fiber.Map{
		"notifications":   notifications,
		"recentDonations": recent,
	}, fiber.StatusOK)
}
