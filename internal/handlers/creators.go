package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/localnerve/tipjar/internal/utils"
	"github.com/localnerve/tipjar/internal/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreatorHandler handles creator profile routes
type CreatorHandler struct {
	DB    *gorm.DB
	State *state.Store
}

// Register handles POST /api/creators
// @Summary Register a creator
// @Description Create a creator profile for the authenticated account
// @Tags Creators
// @Accept json
// @Produce json
// @Param body body services.RegisterCreatorInput true "Creator profile"
// @Success 201 {object} models.Creator
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /creators [post]
func (h *CreatorHandler) Register(c *fiber.Ctx) error {
	au, err := getAuthUser(c)
	if err != nil {
		return utils.ErrorResponse(c, err.Error(), fiber.StatusForbidden, "authorization.user")
	}

	var input services.RegisterCreatorInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "creators.register")
	}
	input.Email = au.Email

	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "creators.register")
	}

	creator, err := services.RegisterCreator(h.DB, input)
	if err != nil {
		return serviceError(c, err, "creators.register")
	}

	if h.State != nil {
		h.State.SetCurrentUser(state.UserSnapshot{
			ID:         creator.ID,
			Username:   creator.Username,
			Email:      creator.Email,
			Name:       creator.DisplayName(),
			IsVerified: creator.IsVerified,
		})
	}

	return utils.SuccessResponse(c, creator, fiber.StatusCreated)
}

// GetMe handles GET /api/creators/me
// @Summary Get own profile
// @Description Get the authenticated creator's full profile
// @Tags Creators
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/me [get]
func (h *CreatorHandler) GetMe(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "creators.me")
	}

	return utils.SuccessResponse(c, creator, fiber.StatusOK)
}

// UpdateMe handles PUT /api/creators/me
// @Summary Update own profile
// @Description Update mutable profile fields for the authenticated creator
// @Tags Creators
// @Accept json
// @Produce json
// @Param body body services.UpdateProfileInput true "Profile changes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/me [put]
func (h *CreatorHandler) UpdateMe(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "creators.update")
	}

	var input services.UpdateProfileInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "creators.update")
	}
	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "creators.update")
	}

	updated, err := services.UpdateProfile(h.DB, creator.ID, input)
	if err != nil {
		return serviceError(c, err, "creators.update")
	}

	if h.State != nil {
		h.State.SetCurrentUser(state.UserSnapshot{
			ID:         updated.ID,
			Username:   updated.Username,
			Email:      updated.Email,
			Name:       updated.DisplayName(),
			IsVerified: updated.IsVerified,
		})
	}

	return utils.SuccessResponse(c, updated, fiber.StatusOK)
}

// DeactivateMe handles DELETE /api/creators/me
// @Summary Deactivate own profile
// @Description Soft-deactivate the authenticated creator's profile
// @Tags Creators
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/me [delete]
func (h *CreatorHandler) DeactivateMe(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "creators.deactivate")
	}

	if err := services.DeactivateCreator(h.DB, creator.ID); err != nil {
		return serviceError(c, err, "creators.deactivate")
	}

	if h.State != nil {
		h.State.ClearUser(creator.ID)
	}

	return utils.MutationSuccessResponse(c, fiber.Map{"deactivated": true})
}

// GetPublicProfile handles GET /api/creators/:username
// @Summary Get a public creator profile
// @Description Get the public profile page for a creator by username
// @Tags Creators
// @Produce json
// @Param username path string true "Creator username"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/{username} [get]
func (h *CreatorHandler) GetPublicProfile(c *fiber.Ctx) error {
	username := c.Params("username")

	creator, err := services.GetCreatorByUsername(h.DB, username)
	if err != nil {
		return serviceError(c, err, "creators.profile")
	}
	if !creator.IsActive || !creator.IsPublic {
		return utils.NotFoundResponse(c, "Creator not found")
	}

	if err := services.RecordProfileView(h.DB, creator.ID, c.Get("Referer")); err != nil {
		logger.Log.Warn("profile view not recorded", zap.String("creator", creator.ID), zap.Error(err))
	}

	return utils.SuccessResponse(c, fiber.Map{
		"id":              creator.ID,
		"username":        creator.Username,
		"displayName":     creator.DisplayName(),
		"bio":             creator.Bio,
		"avatarUrl":       creator.AvatarURL(),
		"profileUrl":      creator.ProfileURL(),
		"socialLinks":     creator.SocialLinks.Data(),
		"currency":        creator.Currency,
		"isVerified":      creator.IsVerified,
		"allowMessages":   creator.AllowMessages,
		"totalDonations":  creator.TotalDonations,
		"totalSupporters": creator.TotalSupporters,
	}, fiber.StatusOK)
}

// GetMyStats handles GET /api/creators/me/stats
// @Summary Get donation statistics
// @Description Get aggregate donation statistics for the authenticated creator
// @Tags Creators
// @Produce json
// @Param start query string false "Range start (RFC3339)"
// @Param end query string false "Range end (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /creators/me/stats [get]
func (h *CreatorHandler) GetMyStats(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "creators.stats")
	}

	start, err := parseTimeQuery(c, "start")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid start parameter", fiber.StatusBadRequest, "creators.stats")
	}
	end, err := parseTimeQuery(c, "end")
	if err != nil {
		return utils.ErrorResponse(c, "Invalid end parameter", fiber.StatusBadRequest, "creators.stats")
	}

	stats, err := services.GetDonationStats(h.DB, creator.ID, start, end)
	if err != nil {
		return serviceError(c, err, "creators.stats")
	}

	return utils.SuccessResponse(c, stats, fiber.StatusOK)
}
