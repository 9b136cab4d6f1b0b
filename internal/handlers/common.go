// common.go
//
// A scalable, high performance drop-in replacement for the tipjar nodejs data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of tipjar.
// tipjar is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// tipjar is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with tipjar.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/types"
	"github.com/localnerve/tipjar/internal/utils"
	"gorm.io/gorm"
)

// authUser is the subset of the authorizer user payload the handlers need.
type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// getAuthUser extracts the authenticated identity placed in context by the
// auth middleware. The SDK hands back a typed struct while tests inject a
// map; a JSON round trip normalizes both.
func getAuthUser(c *fiber.Ctx) (*authUser, error) {
	user := c.Locals("user")
	if user == nil {
		return nil, fmt.Errorf("user not authenticated")
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("invalid user data format")
	}

	var au authUser
	if err := json.Unmarshal(raw, &au); err != nil {
		return nil, fmt.Errorf("invalid user data format")
	}
	if au.Email == "" {
		return nil, fmt.Errorf("user email not found")
	}

	return &au, nil
}

// currentCreator resolves the authenticated identity to its creator record.
func currentCreator(c *fiber.Ctx, db *gorm.DB) (*models.Creator, error) {
	au, err := getAuthUser(c)
	if err != nil {
		return nil, &types.CustomError{
			Code:    fiber.StatusForbidden,
			Message: err.Error(),
			Type:    "authorization.user",
		}
	}

	creator, err := services.GetCreatorByEmail(db, au.Email)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, &types.CustomError{
				Code:    fiber.StatusNotFound,
				Message: "No creator profile for this account",
				Type:    "creator.missing",
			}
		}
		return nil, err
	}

	return creator, nil
}

// parseTimeQuery reads an optional RFC3339 query parameter.
func parseTimeQuery(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseLimit reads the limit query parameter, clamped to [1, max].
func parseLimit(c *fiber.Ctx, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// serviceError maps service-layer errors onto the HTTP error envelope.
func serviceError(c *fiber.Ctx, err error, errorType string) error {
	var ce *types.CustomError
	if errors.As(err, &ce) {
		if ce.Field != "" {
			return utils.FieldErrorResponse(c, ce.Message, ce.Code, ce.Type, ce.Field)
		}
		return utils.ErrorResponse(c, ce.Message, ce.Code, ce.Type)
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.NotFoundResponse(c, "Resource not found")
	case errors.Is(err, services.ErrConflict):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, "conflict")
	case errors.Is(err, services.ErrInvalidTransition):
		return utils.ErrorResponse(c, err.Error(), fiber.StatusConflict, "payment.transition")
	case errors.Is(err, services.ErrMessagesDisabled):
		return utils.ErrorResponse(c, "This creator does not accept messages", fiber.StatusForbidden, "messages.disabled")
	case errors.Is(err, services.ErrNotOwner):
		return utils.ErrorResponse(c, "Resource belongs to another creator", fiber.StatusForbidden, errorType)
	default:
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
	}
}
