package models

import (
	"time"
)

// Message is an unsolicited note from a supporter to a creator.
// ReadAt is set if and only if IsRead is true.
type Message struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	FromName  string `gorm:"size:100" json:"fromName,omitempty"`
	FromEmail string `gorm:"size:255;index:idx_messages_from,priority:1" json:"fromEmail,omitempty"`
	CreatorID string `gorm:"type:char(36);not null;index:idx_messages_inbox,priority:1" json:"creatorId"`

	Subject string `gorm:"size:200;not null" json:"subject"`
	Content string `gorm:"size:2000;not null" json:"content"`

	IsRead      bool       `gorm:"not null;default:false;index:idx_messages_inbox,priority:2" json:"isRead"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	IsAnonymous bool       `gorm:"not null;default:false" json:"isAnonymous"`

	CreatedAt time.Time `gorm:"index:idx_messages_inbox,priority:3,sort:desc;index:idx_messages_from,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Message
func (Message) TableName() string {
	return "messages"
}

// SenderName returns the sender name to display, honoring anonymity.
func (m *Message) SenderName() string {
	if m.IsAnonymous || m.FromName == "" {
		return "Anonymous"
	}
	return m.FromName
}
