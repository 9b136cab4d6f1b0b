package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Traffic source buckets for profile views.
const (
	SourceDirect   = "direct"
	SourceSocial   = "social"
	SourceSearch   = "search"
	SourceReferral = "referral"
)

// DailyAnalytics is one creator's metrics snapshot for one calendar day.
// Rows are keyed by (creator, date); counters only ever increment.
type DailyAnalytics struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatorID string    `gorm:"type:char(36);not null;uniqueIndex:idx_analytics_creator_date,priority:1" json:"creatorId"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_analytics_creator_date,priority:2" json:"date"`

	Views          int64           `gorm:"not null;default:0" json:"views"`
	Donations      int64           `gorm:"not null;default:0" json:"donations"`
	DonationAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"donationAmount"`
	NewSupporters  int64           `gorm:"not null;default:0" json:"newSupporters"`
	Messages       int64           `gorm:"not null;default:0" json:"messages"`

	SourceDirect   int64 `gorm:"not null;default:0" json:"sourceDirect"`
	SourceSocial   int64 `gorm:"not null;default:0" json:"sourceSocial"`
	SourceSearch   int64 `gorm:"not null;default:0" json:"sourceSearch"`
	SourceReferral int64 `gorm:"not null;default:0" json:"sourceReferral"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for DailyAnalytics
func (DailyAnalytics) TableName() string {
	return "daily_analytics"
}

// Day truncates t to its calendar day in UTC, the snapshot key granularity.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
