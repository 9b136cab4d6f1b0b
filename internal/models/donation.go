package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation payment statuses.
const (
	DonationStatusPending   = "pending"
	DonationStatusCompleted = "completed"
	DonationStatusFailed    = "failed"
	DonationStatusRefunded  = "refunded"
)

// Payment providers accepted at donation creation.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderPayPal = "paypal"
	PaymentProviderBank   = "bank"
	PaymentProviderCrypto = "crypto"
)

// ValidStatusTransitions enumerates the forward-only payment state machine.
// failed and refunded are terminal.
var ValidStatusTransitions = map[string][]string{
	DonationStatusPending:   {DonationStatusCompleted, DonationStatusFailed},
	DonationStatusCompleted: {DonationStatusRefunded},
}

// CanTransitionTo reports whether a donation may move from currentStatus to
// targetStatus.
func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ValidPaymentProvider reports whether provider is one of the accepted providers.
func ValidPaymentProvider(provider string) bool {
	switch provider {
	case PaymentProviderStripe, PaymentProviderPayPal, PaymentProviderBank, PaymentProviderCrypto:
		return true
	}
	return false
}

// Donation is one support transaction in the ledger. Amount is immutable after
// creation; PaymentStatus only moves forward through ValidStatusTransitions.
type Donation struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null;index:idx_donations_amount,sort:desc" json:"amount"`
	Currency string          `gorm:"size:3;not null;default:USD" json:"currency"`

	SupporterName    string `gorm:"size:100" json:"supporterName,omitempty"`
	SupporterEmail   string `gorm:"size:255;index" json:"supporterEmail,omitempty"`
	SupporterMessage string `gorm:"size:500" json:"supporterMessage,omitempty"`
	IsAnonymous      bool   `gorm:"not null;default:false" json:"isAnonymous"`

	CreatorID string `gorm:"type:char(36);not null;index:idx_donations_creator_status" json:"creatorId"`
	// CreatorUsername is a denormalized snapshot taken at donation time; it does
	// not follow later username changes.
	CreatorUsername string `gorm:"size:30;not null;index:idx_donations_public" json:"creatorUsername"`

	PaymentID       string `gorm:"size:64;uniqueIndex" json:"paymentId,omitempty"`
	PaymentProvider string `gorm:"size:16;not null" json:"paymentProvider"`
	PaymentStatus   string `gorm:"size:16;not null;default:pending;index:idx_donations_creator_status" json:"paymentStatus"`

	IsPublic   bool       `gorm:"not null;default:true;index:idx_donations_public" json:"isPublic"`
	HasMessage bool       `gorm:"not null;default:false" json:"hasMessage"`
	IsRefunded bool       `gorm:"not null;default:false" json:"isRefunded"`
	RefundedAt *time.Time `json:"refundedAt,omitempty"`

	CoffeeCount int `gorm:"not null;default:1" json:"coffeeCount"`

	CreatedAt time.Time `gorm:"index:idx_donations_creator_status,sort:desc;index:idx_donations_public,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Donation
func (Donation) TableName() string {
	return "donations"
}

// CoffeeCount derives the coffee units bought by amount at unitPrice:
// max(1, floor(amount / unitPrice)).
func CoffeeCount(amount, unitPrice decimal.Decimal) int {
	if !unitPrice.IsPositive() {
		return 1
	}
	n := amount.Div(unitPrice).IntPart()
	if n < 1 {
		return 1
	}
	return int(n)
}

// ApplyDerived recomputes the fields that are pure functions of the donation's
// own data. Called explicitly at every write boundary rather than hidden in a
// persistence hook, so the derivations stay testable in isolation.
func (d *Donation) ApplyDerived(unitPrice decimal.Decimal) {
	d.HasMessage = d.SupporterMessage != ""
	d.CoffeeCount = CoffeeCount(d.Amount, unitPrice)
}

// DisplayName returns the supporter name to show publicly, honoring anonymity.
func (d *Donation) DisplayName() string {
	if d.IsAnonymous || d.SupporterName == "" {
		return "Anonymous"
	}
	return d.SupporterName
}
