package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/utils"
	"github.com/localnerve/tipjar/internal/validation"
	"gorm.io/gorm"
)

// MessageHandler handles supporter message routes
type MessageHandler struct {
	DB *gorm.DB
}

// Create handles POST /api/creators/:username/messages
// @Summary Send a message
// @Description Send a supporter message to a creator's inbox
// @Tags Messages
// @Accept json
// @Produce json
// @Param username path string true "Creator username"
// @Param body body services.CreateMessageInput true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/{username}/messages [post]
func (h *MessageHandler) Create(c *fiber.Ctx) error {
	creator, err := services.GetCreatorByUsername(h.DB, c.Params("username"))
	if err != nil {
		return serviceError(c, err, "messages.create")
	}

	var input services.CreateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "messages.create")
	}
	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "messages.create")
	}

	message, err := services.CreateMessage(h.DB, creator, input)
	if err != nil {
		return serviceError(c, err, "messages.create")
	}

	return utils.SuccessResponse(c, message, fiber.StatusCreated)
}

// ListMine handles GET /api/messages
// @Summary List inbox
// @Description Page through the authenticated creator's inbox, newest first
// @Tags Messages
// @Produce json
// @Param unread query bool false "Only unread messages"
// @Param limit query int false "Max entries (default 50, cap 200)"
// @Param offset query int false "Entries to skip"
// @Success 200 {array} models.Message
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /messages [get]
func (h *MessageHandler) ListMine(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "messages.list")
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	unreadOnly := c.QueryBool("unread", false)

	messages, err := services.ListMessages(h.DB, creator.ID, unreadOnly, parseLimit(c, 50, 200), offset)
	if err != nil {
		return serviceError(c, err, "messages.list")
	}

	return utils.SuccessResponse(c, messages, fiber.StatusOK)
}

// UnreadCount handles GET /api/messages/unread-count
// @Summary Unread message count
// @Description Count the authenticated creator's unread messages
// @Tags Messages
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /messages/unread-count [get]
func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "messages.unread")
	}

	count, err := services.UnreadCount(h.DB, creator.ID)
	if err != nil {
		return serviceError(c, err, "messages.unread")
	}

	return utils.SuccessResponse(c, fiber.Map{"unread": count}, fiber.StatusOK)
}

// MarkRead handles POST /api/messages/:id/read
// @Summary Mark a message read
// @Description Mark one of the authenticated creator's messages as read
// @Tags Messages
// @Produce json
// @Param id path int true "Message ID"
// @Success 200 {object} models.Message
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /messages/{id}/read [post]
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "messages.read")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, "Invalid message id", fiber.StatusBadRequest, "messages.read")
	}

	message, err := services.MarkRead(h.DB, id, creator.ID)
	if err != nil {
		return serviceError(c, err, "messages.read")
	}

	return utils.MutationSuccessResponse(c, message)
}
