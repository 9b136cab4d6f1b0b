// donations.go
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
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/config"
	"github.com/localnerve/tipjar/internal/services"
	"github.com/localnerve/tipjar/internal/state"
	"github.com/localnerve/tipjar/internal/utils"
	"github.com/localnerve/tipjar/internal/validation"
	"gorm.io/gorm"
)

// DonationHandler handles donation ledger routes
type DonationHandler struct {
	DB     *gorm.DB
	Config *config.Config
	State  *state.Store
}

// Create handles POST /api/creators/:username/donations
// @Summary Create a donation
// @Description Record a pending donation for a creator; the payment provider settles it later
// @Tags Donations
// @Accept json
// @Produce json
// @Param username path string true "Creator username"
// @Param body body services.CreateDonationInput true "Donation"
// @Success 201 {object} models.Donation
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /creators/{username}/donations [post]
func (h *DonationHandler) Create(c *fiber.Ctx) error {
	creator, err := services.GetCreatorByUsername(h.DB, c.Params("username"))
	if err != nil {
		return serviceError(c, err, "donations.create")
	}

	var input services.CreateDonationInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, "Invalid request body", fiber.StatusBadRequest, "donations.create")
	}

	if ce := validation.Amount(input.Amount, "amount"); ce != nil {
		return serviceError(c, ce, "donations.create")
	}
	if ce := validation.Struct(input); ce != nil {
		return serviceError(c, ce, "donations.create")
	}

	donation, err := services.CreateDonation(h.DB, creator, h.Config.CoffeeUnitPrice, input)
	if err != nil {
		return serviceError(c, err, "donations.create")
	}

	return utils.SuccessResponse(c, donation, fiber.StatusCreated)
}

// Top handles GET /api/creators/:username/donations/top
// @Summary Top donations
// @Description List a creator's largest completed public donations
// @Tags Donations
// @Produce json
// @Param username path string true "Creator username"
// @Param limit query int false "Max entries (default 10, cap 100)"
// @Success 200 {array} services.PublicDonation
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/{username}/donations/top [get]
func (h *DonationHandler) Top(c *fiber.Ctx) error {
	return h.publicList(c, services.GetTopDonations)
}

// Recent handles GET /api/creators/:username/donations/recent
// @Summary Recent donations
// @Description List a creator's most recent completed public donations
// @Tags Donations
// @Produce json
// @Param username path string true "Creator username"
// @Param limit query int false "Max entries (default 10, cap 100)"
// @Success 200 {array} services.PublicDonation
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /creators/{username}/donations/recent [get]
func (h *DonationHandler) Recent(c *fiber.Ctx) error {
	return h.publicList(c, services.GetRecentDonations)
}

func (h *DonationHandler) publicList(c *fiber.Ctx, list func(*gorm.DB, string, int) ([]services.PublicDonation, error)) error {
	creator, err := services.GetCreatorByUsername(h.DB, c.Params("username"))
	if err != nil {
		return serviceError(c, err, "donations.list")
	}
	if !creator.IsActive || !creator.IsPublic {
		return utils.NotFoundResponse(c, "Creator not found")
	}

	donations, err := list(h.DB, creator.ID, parseLimit(c, 10, 100))
	if err != nil {
		return serviceError(c, err, "donations.list")
	}

	return utils.SuccessResponse(c, donations, fiber.StatusOK)
}

// ListMine handles GET /api/donations/me
// @Summary List own donations
// @Description Page through the authenticated creator's full donation ledger
// @Tags Donations
// @Produce json
// @Param limit query int false "Max entries (default 50, cap 200)"
// @Param offset query int false "Entries to skip"
// @Success 200 {array} models.Donation
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /donations/me [get]
func (h *DonationHandler) ListMine(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "donations.mine")
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	donations, err := services.ListCreatorDonations(h.DB, creator.ID, parseLimit(c, 50, 200), offset)
	if err != nil {
		return serviceError(c, err, "donations.mine")
	}

	return utils.SuccessResponse(c, donations, fiber.StatusOK)
}

// Refund handles POST /api/donations/:id/refund
// @Summary Refund a donation
// @Description Move one of the authenticated creator's completed donations to refunded
// @Tags Donations
// @Produce json
// @Param id path int true "Donation ID"
// @Success 200 {object} models.Donation
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /donations/{id}/refund [post]
func (h *DonationHandler) Refund(c *fiber.Ctx) error {
	creator, err := currentCreator(c, h.DB)
	if err != nil {
		return serviceError(c, err, "donations.refund")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return utils.ErrorResponse(c, "Invalid donation id", fiber.StatusBadRequest, "donations.refund")
	}

	donation, err := services.RefundDonation(h.DB, id, creator.ID)
	if err != nil {
		return serviceError(c, err, "donations.refund")
	}

	return utils.MutationSuccessResponse(c, donation)
}
