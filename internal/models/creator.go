package models

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Supported settlement currencies.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyMNT = "MNT"
	CurrencyKRW = "KRW"
	CurrencyJPY = "JPY"
)

// ValidCurrency reports whether currency is one of the supported codes.
func ValidCurrency(currency string) bool {
	switch currency {
	case CurrencyUSD, CurrencyEUR, CurrencyMNT, CurrencyKRW, CurrencyJPY:
		return true
	}
	return false
}

// SocialLinks holds the optional social profile URLs shown on a creator page.
type SocialLinks struct {
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	GitHub    string `json:"github,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// Creator is an identity record that can receive donations.
//
// TotalDonations and TotalSupporters are a cache over the donation ledger,
// written only by the stats rollup. The ledger is the source of truth.
type Creator struct {
	ID              string     `gorm:"type:char(36);primaryKey" json:"id"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	Name            string     `gorm:"size:100" json:"name"`
	Image           string     `gorm:"size:500" json:"image,omitempty"`

	Username string `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Bio      string `gorm:"size:500" json:"bio,omitempty"`
	Website  string `gorm:"size:200" json:"website,omitempty"`
	Location string `gorm:"size:100" json:"location,omitempty"`

	SocialLinks datatypes.JSONType[SocialLinks] `json:"socialLinks"`

	IsPublic      bool   `gorm:"not null;default:true" json:"isPublic"`
	AllowMessages bool   `gorm:"not null;default:true" json:"allowMessages"`
	Currency      string `gorm:"size:3;not null;default:USD" json:"currency"`

	TotalDonations  decimal.Decimal  `gorm:"type:decimal(14,2);not null;default:0;index:idx_creators_total,sort:desc" json:"totalDonations"`
	TotalSupporters int64            `gorm:"not null;default:0" json:"totalSupporters"`
	MonthlyGoal     *decimal.Decimal `gorm:"type:decimal(14,2)" json:"monthlyGoal,omitempty"`

	IsActive   bool `gorm:"not null;default:true" json:"isActive"`
	IsVerified bool `gorm:"not null;default:false" json:"isVerified"`

	CreatedAt time.Time `gorm:"index:idx_creators_created,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Creator
func (Creator) TableName() string {
	return "creators"
}

// ProfileURL returns the public profile path for the creator.
func (c *Creator) ProfileURL() string {
	return "/profile/" + c.Username
}

// DisplayName returns the name to show publicly, falling back to the handle.
func (c *Creator) DisplayName() string {
	if c.Name == "" {
		return c.Username
	}
	return c.Name
}

// AvatarURL returns the creator's image, or a generated placeholder avatar.
func (c *Creator) AvatarURL() string {
	if c.Image != "" {
		return c.Image
	}
	name := c.Name
	if name == "" {
		name = c.Username
	}
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=f59e0b&color=fff",
		url.QueryEscape(name))
}
