package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/utils"
	"github.com/localnerve/tipjar/internal/validation"
	"gorm.io/gorm"
)

// GoalHandler handles funding goal routes
type GoalHandler struct {
	DB *gorm.DB
}

// Create handles POST /api/goals
// @Summary Create a goal
// @Description Create a funding goal for the authenticated creator
// @Tags Goals
// @Accept json
// @Produce json
// @Param body body services.CreateGoalInput true "Goal"
// @Success 201 {object} models.Goal
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /goals [post]
func (h *GoalHandler) Create(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "goals.create")
	}

	var input services.CreateGoalInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "goals.create")
	}

	if ce := validation.Amount(input.TargetAmount, "targetAmount"); ce != nil {
		return serviceError(c, ce, "goals.create")
	}
	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "goals.create")
	}

	goal, err := services.CreateGoal(h.DB, creator, input)
	if err != nil {
		return serviceError(c, err, "goals.create")
	}

	return utils.SuccessResponse(c, goal, fiber.StatusCreated)
}

// Update handles PUT /api/goals/:id
// @Summary Update a goal
// @Description Update one of the authenticated creator's goals
// @Tags Goals
// @Accept json
// @Produce json
// @Param id path int true "Goal ID"
// @Param body body services.UpdateGoalInput true "Goal changes"
// @Success 200 {object} models.Goal
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /goals/{id} [put]
func (h *GoalHandler) Update(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "goals.update")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, "Invalid goal id", fiber.StatusBadRequest, "goals.update")
	}

	var input services.UpdateGoalInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "goals.update")
	}
	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "goals.update")
	}
	if input.TargetAmount != nil {
		if ce := validation.Amount(*input.TargetAmount, "targetAmount"); ce != nil {
			return serviceError(c, ce, "goals.update")
		}
	}

	goal, err := services.UpdateGoal(h.DB, id, creator.ID, input)
	if err != nil {
		return serviceError(c, err, "goals.update")
	}

	return utils.MutationSuccessResponse(c, goal)
}

// ListMine handles GET /api/goals/me
// @Summary List own goals
// @Description List all of the authenticated creator's goals
// @Tags Goals
// @Produce json
// @Success 200 {array} models.Goal
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /goals/me [get]
func (h *GoalHandler) ListMine(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "goals.mine")
	}

	goals, err := services.ListCreatorGoals(h.DB, creator.ID)
	if err != nil {
		return serviceError(c, err, "goals.mine")
	}

	return utils.SuccessResponse(c, goals, fiber.StatusOK)
}

// ListPublic handles GET /api/creators/:username/goals
// @Summary Active goals for a creator
// @Description List the active, unexpired goals shown on a creator's page
// @Tags Goals
// @Produce json
// @Param username path string true "Creator username"
// @Success 200 {array} models.Goal
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/{username}/goals [get]
func (h *GoalHandler) ListPublic(c *fiber.Ctx) error {
	creator, err := services.GetCreatorByUsername(h.DB, c.Params("username"))
	if err != nil {
		return serviceError(c, err, "goals.public")
	}
	if !creator.IsActive || !creator.IsPublic {
		return utils.NotFoundResponse(c, "Creator not found")
	}

	goals, err := services.GetActiveGoals(h.DB, creator.ID, time.Now().UTC())
	if err != nil {
		return serviceError(c, err, "goals.public")
	}

	return utils.SuccessResponse(c, goals, fiber.StatusOK)
}
