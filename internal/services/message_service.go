package services

import (
	"errors"
	"strings"
	"time"

	"github.com/localnerve/tipjar/internal/logger"
	"github.com/localnerve/tipjar/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateMessageInput is the payload for an inbound supporter message.
type CreateMessageInput struct {
	FromName    string `validate:"max=100"`
	FromEmail   string `validate:"omitempty,email"`
	Subject     string `validate:"required,max=200"`
	Content     string `validate:"required,max=2000"`
	IsAnonymous bool
}

// CreateMessage stores an inbound message for the creator. Creators that are
// deactivated or have switched messages off do not receive mail.
func CreateMessage(db *gorm.DB, creator *models.Creator, input CreateMessageInput) (*models.Message, error) {
	if creator == nil || !creator.IsActive {
		return nil, ErrNotFound
	}
	if !creator.AllowMessages {
		return nil, ErrMessagesDisabled
	}

	message := &models.Message{
		FromName:    strings.TrimSpace(input.FromName),
		FromEmail:   strings.ToLower(strings.TrimSpace(input.FromEmail)),
		CreatorID:   creator.ID,
		Subject:     strings.TrimSpace(input.Subject),
		Content:     strings.TrimSpace(input.Content),
		IsAnonymous: input.IsAnonymous,
	}

	if err := db.Create(message).Error; err != nil {
		return nil, err
	}

	if err := RecordMessage(db, creator.ID); err != nil {
		logger.Log.Warn("Failed to record message analytics",
			zap.String("creatorID", creator.ID), zap.Error(err))
	}

	return message, nil
}

// ListMessages returns the creator's inbox, newest first. With unreadOnly the
// listing is restricted to unread mail.
func ListMessages(db *gorm.DB, creatorID string, unreadOnly bool, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := db.Where("creator_id = ?", creatorID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var messages []models.Message
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&messages).Error
	return messages, err
}

// UnreadCount returns the number of unread messages in the creator's inbox.
func UnreadCount(db *gorm.DB, creatorID string) (int64, error) {
	var count int64
	err := db.Model(&models.Message{}).
		Where("creator_id = ? AND is_read = ?", creatorID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips the message from unread to read, stamping readAt together
// with the flag. Re-reading an already read message is a no-op.
func MarkRead(db *gorm.DB, messageID uint64, creatorID string) (*models.Message, error) {
	var message models.Message
	err := db.Where("id = ?", messageID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if message.CreatorID != creatorID {
		return nil, ErrNotOwner
	}

	if message.IsRead {
		return &message, nil
	}

	now := time.Now().UTC()
	err = db.Model(&models.Message{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
	if err != nil {
		return nil, err
	}

	message.IsRead = true
	message.ReadAt = &now
	return &message, nil
}
