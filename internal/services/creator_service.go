package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/hints"
)

// RegisterCreatorInput is the payload for creating a creator on first sign-in.
type RegisterCreatorInput struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"max=100"`
	Username string `validate:"omitempty,min=3,max=30,username"`
	Currency string `validate:"omitempty,oneof=USD EUR MNT KRW JPY"`
}

// UpdateProfileInput carries the editable profile fields. Nil pointers leave
// the field untouched. Cached totals are not reachable through this path.
type UpdateProfileInput struct {
	Name          *string `validate:"omitempty,max=100"`
	Bio           *string `validate:"omitempty,max=500"`
	Website       *string `validate:"omitempty,url,max=200"`
	Location      *string `validate:"omitempty,max=100"`
	Image         *string `validate:"omitempty,max=500"`
	Currency      *string `validate:"omitempty,oneof=USD EUR MNT KRW JPY"`
	IsPublic      *bool
	AllowMessages *bool
	MonthlyGoal   *decimal.Decimal
	SocialLinks   *models.SocialLinks
}

// NormalizeUsername lowercases base and strips everything outside [a-z0-9_].
func NormalizeUsername(base string) string {
	base = strings.ToLower(strings.TrimSpace(base))
	var b strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AllocateUsername probes for the first free handle derived from base:
// base, base1, base2, ... The probe is a best-effort hint under concurrent
// registration; the unique index on creators.username is the final arbiter.
func AllocateUsername(db *gorm.DB, base string) (string, error) {
	base = NormalizeUsername(base)
	if len(base) < 3 {
		base = "creator"
	}
	if len(base) > 30 {
		base = base[:30]
	}

	candidate := base
	for counter := 1; ; counter++ {
		var count int64
		if err := db.Model(&models.Creator{}).
			Where("username = ?", candidate).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}

		// The suffixed handle must stay within the 30-character ceiling
		suffix := fmt.Sprintf("%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 30 {
			trimmed = trimmed[:30-len(suffix)]
		}
		candidate = trimmed + suffix
	}
}

// RegisterCreator creates the creator record for a newly authenticated
// identity. The email must be unused; the username is allocated from the
// desired handle, falling back to the email local part.
func RegisterCreator(db *gorm.DB, input RegisterCreatorInput) (*models.Creator, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var count int64
	if err := db.Model(&models.Creator{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
	}

	base := input.Username
	if base == "" {
		base = strings.SplitN(email, "@", 2)[0]
	}
	username, err := AllocateUsername(db, base)
	if err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = models.CurrencyUSD
	}

	creator := &models.Creator{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          input.Name,
		Username:      username,
		Currency:      currency,
		IsPublic:      true,
		AllowMessages: true,
		IsActive:      true,
	}

	if err := db.Create(creator).Error; err != nil {
		// A concurrent registration can win the race on username or email;
		// the unique index reports it here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("creator %s: %w", username, ErrConflict)
		}
		return nil, err
	}

	logger.Log.Info("Creator registered",
		zap.String("creatorID", creator.ID),
		zap.String("username", creator.Username))

	return creator, nil
}

// GetCreatorByUsername returns the creator with the given handle.
func GetCreatorByUsername(db *gorm.DB, username string) (*models.Creator, error) {
	var creator models.Creator
	err := db.Where("username = ?", strings.ToLower(username)).First(&creator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &creator, nil
}

// GetCreatorByEmail returns the creator bound to the given email.
func GetCreatorByEmail(db *gorm.DB, email string) (*models.Creator, error) {
	var creator models.Creator
	err := db.Where("email = ?", strings.ToLower(email)).First(&creator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &creator, nil
}

// UpdateProfile applies the provided profile fields to the creator.
func UpdateProfile(db *gorm.DB, creatorID string, input UpdateProfileInput) (*models.Creator, error) {
	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Bio != nil {
		updates["bio"] = *input.Bio
	}
	if input.Website != nil {
		updates["website"] = *input.Website
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}
	if input.Image != nil {
		updates["image"] = *input.Image
	}
	if input.Currency != nil {
		updates["currency"] = *input.Currency
	}
	if input.IsPublic != nil {
		updates["is_public"] = *input.IsPublic
	}
	if input.AllowMessages != nil {
		updates["allow_messages"] = *input.AllowMessages
	}
	if input.MonthlyGoal != nil {
		updates["monthly_goal"] = *input.MonthlyGoal
	}
	if input.SocialLinks != nil {
		updates["social_links"] = datatypes.NewJSONType(*input.SocialLinks)
	}

	if len(updates) > 0 {
		res := db.Model(&models.Creator{}).Where("id = ?", creatorID).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	var creator models.Creator
	if err := db.Where("id = ?", creatorID).First(&creator).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &creator, nil
}

// DeactivateCreator soft-deactivates the creator. Records are never hard
// deleted; the ledger has to stay intact.
func DeactivateCreator(db *gorm.DB, creatorID string) error {
	res := db.Model(&models.Creator{}).Where("id = ?", creatorID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// creatorRollup is the scan target for the stats aggregate.
type creatorRollup struct {
	TotalAmount     decimal.Decimal
	TotalSupporters int64
}

// RecomputeCreatorStats recomputes the creator's cached totals from the
// donation ledger: sum of amount and count of distinct non-empty supporter
// emails over completed entries. Always a full recompute, never a delta, so
// repeated invocations converge on the same values regardless of interleaving.
// A missing creator is a silent no-op; the ledger stays authoritative and the
// next rollup reconciles the cache.
func RecomputeCreatorStats(db *gorm.DB, creatorID string) error {
	var exists int64
	if err := db.Model(&models.Creator{}).Where("id = ?", creatorID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		logger.Log.Debug("Rollup skipped, creator not found", zap.String("creatorID", creatorID))
		return nil
	}

	var rollup creatorRollup
	err := db.Session(&gorm.Session{Logger: db.Logger.LogMode(gormlogger.Silent)}).
		Model(&models.Donation{}).
		Clauses(hints.New("MAX_EXECUTION_TIME(5000)")).
		Select("COALESCE(SUM(amount), 0) AS total_amount, "+
			"COUNT(DISTINCT CASE WHEN supporter_email <> '' THEN supporter_email END) AS total_supporters").
		Where("creator_id = ? AND payment_status = ?", creatorID, models.DonationStatusCompleted).
		Scan(&rollup).Error
	if err != nil {
		return err
	}

	return db.Model(&models.Creator{}).Where("id = ?", creatorID).
		Updates(map[string]interface{}{
			"total_donations":  rollup.TotalAmount,
			"total_supporters": rollup.TotalSupporters,
		}).Error
}

// TouchEmailVerified stamps the verification time once, on first verified
// sign-in.
func TouchEmailVerified(db *gorm.DB, creatorID string, at time.Time) error {
	return db.Model(&models.Creator{}).
		Where("id = ? AND email_verified_at IS NULL", creatorID).
		Update("email_verified_at", at).Error
}
