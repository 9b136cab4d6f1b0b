package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// CreateDonationInput is the payload for initiating a donation.
type CreateDonationInput struct {
	Amount           decimal.Decimal
	Currency         string `validate:"omitempty,oneof=USD EUR MNT KRW JPY"`
	SupporterName    string `validate:"max=100"`
	SupporterEmail   string `validate:"omitempty,email"`
	SupporterMessage string `validate:"max=500"`
	IsAnonymous      bool
	IsPublic         *bool
	PaymentID        string `validate:"max=64"`
	PaymentProvider  string `validate:"required,oneof=stripe paypal bank crypto"`
}

// PublicDonation is the read-only listing shape exposed to the presentation
// layer. Anonymity is already applied to the name.
type PublicDonation struct {
	Amount      decimal.Decimal `json:"amount"`
	DisplayName string          `json:"displayName"`
	Message     string          `json:"message,omitempty"`
	CoffeeCount int             `json:"coffeeCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// DonationStats is the aggregate over a creator's completed donations.
type DonationStats struct {
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	TotalDonations   int64           `json:"totalDonations"`
	AverageAmount    decimal.Decimal `json:"averageAmount"`
	UniqueSupporters int64           `json:"uniqueSupporters"`
	TotalCoffees     int64           `json:"totalCoffees"`
}

// CreateDonation persists a new ledger entry in the pending state. The
// creator must exist and be active. Derived fields are computed here, at the
// write boundary.
func CreateDonation(db *gorm.DB, creator *models.Creator, unitPrice decimal.Decimal, input CreateDonationInput) (*models.Donation, error) {
	if creator == nil || !creator.IsActive {
		return nil, ErrNotFound
	}

	currency := input.Currency
	if currency == "" {
		currency = creator.Currency
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	donation := &models.Donation{
		Amount:           input.Amount,
		Currency:         currency,
		SupporterName:    strings.TrimSpace(input.SupporterName),
		SupporterEmail:   strings.ToLower(strings.TrimSpace(input.SupporterEmail)),
		SupporterMessage: strings.TrimSpace(input.SupporterMessage),
		IsAnonymous:      input.IsAnonymous,
		CreatorID:        creator.ID,
		CreatorUsername:  creator.Username,
		PaymentID:        input.PaymentID,
		PaymentProvider:  input.PaymentProvider,
		PaymentStatus:    models.DonationStatusPending,
		IsPublic:         isPublic,
	}
	donation.ApplyDerived(unitPrice)

	if err := db.Create(donation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("payment reference %s: %w", input.PaymentID, ErrConflict)
		}
		return nil, err
	}

	return donation, nil
}

// ApplyPaymentEvent resolves a payment provider event against the ledger
// entry carrying paymentID. Transitions follow models.ValidStatusTransitions;
// a repeated event for the current status is a no-op. Entering completed or
// refunded synchronously triggers the stats rollup and the daily analytics
// counters. Returns the donation and whether this call changed it.
func ApplyPaymentEvent(db *gorm.DB, paymentID, targetStatus string) (*models.Donation, bool, error) {
	var donation models.Donation
	err := db.Where("payment_id = ?", paymentID).First(&donation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	changed, err := transition(db, &donation, targetStatus)
	if err != nil {
		return &donation, false, err
	}
	return &donation, changed, nil
}

// RefundDonation moves a completed donation to refunded on behalf of its
// owning creator, then recomputes the creator's cached totals.
func RefundDonation(db *gorm.DB, donationID uint64, creatorID string) (*models.Donation, error) {
	var donation models.Donation
	err := db.Where("id = ?", donationID).First(&donation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if donation.CreatorID != creatorID {
		return nil, ErrNotOwner
	}

	if _, err := transition(db, &donation, models.DonationStatusRefunded); err != nil {
		return &donation, err
	}
	return &donation, nil
}

// transition applies one forward step of the payment state machine to the
// loaded donation and runs the triggered side effects. The UPDATE is guarded
// by the previous status so two concurrent resolutions of the same entry
// cannot both win.
func transition(db *gorm.DB, donation *models.Donation, targetStatus string) (bool, error) {
	if donation.PaymentStatus == targetStatus {
		return false, nil
	}
	if !models.CanTransitionTo(donation.PaymentStatus, targetStatus) {
		return false, fmt.Errorf("%s -> %s: %w", donation.PaymentStatus, targetStatus, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"payment_status": targetStatus}
	if targetStatus == models.DonationStatusRefunded {
		// The refund flag and timestamp change atomically with the status.
		updates["is_refunded"] = true
		updates["refunded_at"] = now
	}

	res := db.Model(&models.Donation{}).
		Where("id = ? AND payment_status = ?", donation.ID, donation.PaymentStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent transition.
		return false, fmt.Errorf("%s -> %s: %w", donation.PaymentStatus, targetStatus, ErrInvalidTransition)
	}

	donation.PaymentStatus = targetStatus
	if targetStatus == models.DonationStatusRefunded {
		donation.IsRefunded = true
		donation.RefundedAt = &now
	}

	if targetStatus == models.DonationStatusCompleted {
		if err := RecordDonationCompleted(db, donation); err != nil {
			logger.Log.Warn("Failed to record donation analytics",
				zap.Uint64("donationID", donation.ID), zap.Error(err))
		}
	}
	if targetStatus == models.DonationStatusCompleted || targetStatus == models.DonationStatusRefunded {
		if err := RecomputeCreatorStats(db, donation.CreatorID); err != nil {
			// Propagate so the caller knows the cache is stale; the ledger
			// entry itself is already committed.
			return true, fmt.Errorf("stats rollup: %w", err)
		}
	}

	logger.Log.Info("Donation transitioned",
		zap.Uint64("donationID", donation.ID),
		zap.String("status", targetStatus))

	return true, nil
}

// publicListing scopes a query to the completed, public entries of a creator.
func publicListing(db *gorm.DB, creatorID string, limit int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return db.Model(&models.Donation{}).
		Where("creator_id = ? AND payment_status = ? AND is_public = ?",
			creatorID, models.DonationStatusCompleted, true).
		Limit(limit)
}

// GetTopDonations returns the creator's largest completed public donations.
func GetTopDonations(db *gorm.DB, creatorID string, limit int) ([]PublicDonation, error) {
	var donations []models.Donation
	if err := publicListing(db, creatorID, limit).
		Order("amount DESC").Find(&donations).Error; err != nil {
		return nil, err
	}
	return toPublic(donations), nil
}

// GetRecentDonations returns the creator's latest completed public donations.
func GetRecentDonations(db *gorm.DB, creatorID string, limit int) ([]PublicDonation, error) {
	var donations []models.Donation
	if err := publicListing(db, creatorID, limit).
		Order("created_at DESC").Find(&donations).Error; err != nil {
		return nil, err
	}
	return toPublic(donations), nil
}

func toPublic(donations []models.Donation) []PublicDonation {
	out := make([]PublicDonation, 0, len(donations))
	for i := range donations {
		d := &donations[i]
		out = append(out, PublicDonation{
			Amount:      d.Amount,
			DisplayName: d.DisplayName(),
			Message:     d.SupporterMessage,
			CoffeeCount: d.CoffeeCount,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out
}

// ListCreatorDonations returns the creator's own received ledger, newest
// first, with every field visible to the owner.
func ListCreatorDonations(db *gorm.DB, creatorID string, limit, offset int) ([]models.Donation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var donations []models.Donation
	err := db.Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&donations).Error
	return donations, err
}

// ListPendingDonations returns pending entries that carry an external payment
// reference, oldest first, for the reconciliation worker.
func ListPendingDonations(db *gorm.DB, limit int) ([]models.Donation, error) {
	if limit <= 0 {
		limit = 100
	}
	var donations []models.Donation
	err := db.Where("payment_status = ? AND payment_id <> ''", models.DonationStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&donations).Error
	return donations, err
}

// donationStatsRow is the scan target for GetDonationStats.
type donationStatsRow struct {
	TotalAmount      decimal.Decimal
	TotalDonations   int64
	AverageAmount    decimal.Decimal
	UniqueSupporters int64
	TotalCoffees     int64
}

// GetDonationStats aggregates the creator's completed donations, optionally
// restricted to [start, end].
func GetDonationStats(db *gorm.DB, creatorID string, start, end *time.Time) (*DonationStats, error) {
	query := db.Model(&models.Donation{}).
		Clauses(hints.New("MAX_EXECUTION_TIME(5000)")).
		Where("creator_id = ? AND payment_status = ?", creatorID, models.DonationStatusCompleted)
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("created_at <= ?", *end)
	}

	var row donationStatsRow
	err := query.Select("COALESCE(SUM(amount), 0) AS total_amount, " +
		"COUNT(*) AS total_donations, " +
		"COALESCE(AVG(amount), 0) AS average_amount, " +
		"COUNT(DISTINCT CASE WHEN supporter_email <> '' THEN supporter_email END) AS unique_supporters, " +
		"COALESCE(SUM(coffee_count), 0) AS total_coffees").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &DonationStats{
		TotalAmount:      row.TotalAmount,
		TotalDonations:   row.TotalDonations,
		AverageAmount:    row.AverageAmount.Round(2),
		UniqueSupporters: row.UniqueSupporters,
		TotalCoffees:     row.TotalCoffees,
	}, nil
}

// CountSupporterCompleted reports how many completed donations the supporter
// email already has with the creator. Used to detect first-time supporters.
func CountSupporterCompleted(db *gorm.DB, creatorID, supporterEmail string) (int64, error) {
	if supporterEmail == "" {
		return 0, nil
	}
	var count int64
	err := db.Model(&models.Donation{}).
		Where("creator_id = ? AND payment_status = ? AND supporter_email = ?",
			creatorID, models.DonationStatusCompleted, supporterEmail).
		Count(&count).Error
	return count, err
}
