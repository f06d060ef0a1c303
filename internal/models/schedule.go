package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	EntryUpcoming  EntryStatus = "upcoming"
	EntryPaid      EntryStatus = "paid"
	EntryCancelled EntryStatus = "cancelled"
)

// Terminal reports whether the status permits no further mutation.
func (s EntryStatus) Terminal() bool {
	return s == EntryPaid || s == EntryCancelled
}

// ScheduleEntry is one expected or completed payment instance. Standalone
// bills have LiabilityID = 0. Mutation audit fields are explicit columns per
// mutation kind rather than a free-form metadata bag.
type ScheduleEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"index" json:"user_id"`
	LiabilityID   uint            `gorm:"index" json:"liability_id"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	Principal     decimal.Decimal `gorm:"type:numeric(20,2)" json:"principal"`
	Interest      decimal.Decimal `gorm:"type:numeric(20,2)" json:"interest"`
	PaymentNumber int             `json:"payment_number"`
	Status        EntryStatus     `gorm:"default:upcoming;index" json:"status"`

	// Audit trail for schedule mutations.
	SkipPolicy        string           `json:"skip_policy,omitempty"` // fold_next, append_final, spread
	PostponedFrom     *time.Time       `json:"postponed_from,omitempty"`
	AmountChangedFrom *decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount_changed_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
