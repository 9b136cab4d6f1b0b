package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a funding target owned by one creator. CurrentAmount is maintained
// by the creator; it is not driven by the donation ledger.
type Goal struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatorID   string `gorm:"type:char(36);not null;index:idx_goals_creator_active" json:"creatorId"`
	Title       string `gorm:"size:100;not null" json:"title"`
	Description string `gorm:"size:500" json:"description,omitempty"`

	TargetAmount  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"targetAmount"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"currentAmount"`
	Currency      string          `gorm:"size:3;not null;default:USD" json:"currency"`

	Deadline *time.Time `gorm:"index:idx_goals_deadline_active" json:"deadline,omitempty"`

	IsActive    bool       `gorm:"not null;default:true;index:idx_goals_creator_active;index:idx_goals_deadline_active" json:"isActive"`
	IsCompleted bool       `gorm:"not null;default:false" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName overrides the table name for Goal
func (Goal) TableName() string {
	return "goals"
}

// EvaluateCompletion applies the completion latch: the first time
// CurrentAmount reaches TargetAmount the goal is marked completed and stamped.
// The latch is one-way; a later drop in CurrentAmount never clears it.
// Returns true when the goal transitioned on this call.
func (g *Goal) EvaluateCompletion(now time.Time) bool {
	if g.IsCompleted {
		return false
	}
	if g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount) {
		g.IsCompleted = true
		g.CompletedAt = &now
		return true
	}
	return false
}

// ProgressPercentage returns funding progress capped at 100.
func (g *Goal) ProgressPercentage() int {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct := g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// IsExpired reports whether the goal has a deadline in the past.
func (g *Goal) IsExpired(now time.Time) bool {
	return g.Deadline != nil && g.Deadline.Before(now)
}
