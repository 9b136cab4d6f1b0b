package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/payments"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/localnerve/tipjar/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentHandler handles payment provider callbacks
type PaymentHandler struct {
	DB    *gorm.DB
	State *state.Store
}

// Webhook handles POST /api/payments/webhook
// @Summary Payment status webhook
// @Description Apply a payment provider status event to the donation ledger
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	var event payments.Event
	if err := c.BodyParser(&event); err != nil {
		return utils.ErrorResponse(c, "Invalid event body", fiber.StatusBadRequest, "payments.webhook")
	}
	if event.PaymentID == "" {
		return utils.FieldErrorResponse(c, "payment_id is required", fiber.StatusBadRequest, "payments.webhook", "payment_id")
	}

	status := payments.MapStatus(event.Status)
	if status == models.DonationStatusPending {
		// Nothing to apply; the entry is already pending.
		return utils.MutationSuccessResponse(c, fiber.Map{"applied": false})
	}

	donation, changed, err := services.ApplyPaymentEvent(h.DB, event.PaymentID, status)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return utils.NotFoundResponse(c, "Unknown payment reference")
		}
		return serviceError(c, err, "payments.webhook")
	}

	if changed && status == models.DonationStatusCompleted && h.State != nil {
		h.State.PushDonationNotification(donation)
	}
	if changed {
		logger.Log.Info("payment event applied",
			zap.String("paymentId", event.PaymentID),
			zap.String("status", status))
	}

	return utils.MutationSuccessResponse(c, fiber.Map{
		"applied": changed,
		"status":  donation.PaymentStatus,
	})
}
