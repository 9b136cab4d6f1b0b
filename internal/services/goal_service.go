package services

import (
	"errors"
	"time"

	"github.com/localnerve/tipjar/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGoalInput is the payload for creating a funding goal.
type CreateGoalInput struct {
	Title         string `validate:"required,max=100"`
	Description   string `validate:"max=500"`
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Currency      string `validate:"omitempty,oneof=USD EUR MNT KRW JPY"`
	Deadline      *time.Time
}

// UpdateGoalInput carries the editable goal fields; nil leaves a field as is.
type UpdateGoalInput struct {
	Title         *string `validate:"omitempty,max=100"`
	Description   *string `validate:"omitempty,max=500"`
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	Deadline      *time.Time
	IsActive      *bool
}

// CreateGoal persists a new goal for the creator. Completion is evaluated
// immediately: a goal created already funded latches on creation.
func CreateGoal(db *gorm.DB, creator *models.Creator, input CreateGoalInput) (*models.Goal, error) {
	currency := input.Currency
	if currency == "" {
		currency = creator.Currency
	}

	goal := &models.Goal{
		CreatorID:     creator.ID,
		Title:         input.Title,
		Description:   input.Description,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: input.CurrentAmount,
		Currency:      currency,
		Deadline:      input.Deadline,
		IsActive:      true,
	}
	goal.EvaluateCompletion(time.Now().UTC())

	if err := db.Create(goal).Error; err != nil {
		return nil, err
	}
	return goal, nil
}

// UpdateGoal applies the provided fields to the creator's goal and
// re-evaluates the completion latch. The row is locked for the
// read-modify-write so concurrent updates serialize.
func UpdateGoal(db *gorm.DB, goalID uint64, creatorID string, input UpdateGoalInput) (*models.Goal, error) {
	var goal models.Goal

	err := db.Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", goalID)
		// SQLite has no row locks; its writes serialize anyway.
		if tx.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if goal.CreatorID != creatorID {
			return ErrNotOwner
		}

		if input.Title != nil {
			goal.Title = *input.Title
		}
		if input.Description != nil {
			goal.Description = *input.Description
		}
		if input.TargetAmount != nil {
			goal.TargetAmount = *input.TargetAmount
		}
		if input.CurrentAmount != nil {
			goal.CurrentAmount = *input.CurrentAmount
		}
		if input.Deadline != nil {
			goal.Deadline = input.Deadline
		}
		if input.IsActive != nil {
			goal.IsActive = *input.IsActive
		}

		// Latch evaluation on every write. Once completed, stays completed,
		// even if the current amount later drops below the target.
		goal.EvaluateCompletion(time.Now().UTC())

		return tx.Save(&goal).Error
	})
	if err != nil {
		return nil, err
	}

	return &goal, nil
}

// GetActiveGoals returns the creator's active goals whose deadline is unset
// or still in the future, newest first.
func GetActiveGoals(db *gorm.DB, creatorID string, now time.Time) ([]models.Goal, error) {
	var goals []models.Goal
	err := db.Where("creator_id = ? AND is_active = ?", creatorID, true).
		Where("deadline IS NULL OR deadline >= ?", now).
		Order("created_at DESC").
		Find(&goals).Error
	return goals, err
}

// ListCreatorGoals returns all of the creator's goals, newest first.
func ListCreatorGoals(db *gorm.DB, creatorID string) ([]models.Goal, error) {
	var goals []models.Goal
	err := db.Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&goals).Error
	return goals, err
}
