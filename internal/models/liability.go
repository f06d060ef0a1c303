package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqBiWeekly  Frequency = "bi-weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqYearly    Frequency = "yearly"
)

// PeriodsPerYear returns how many payment periods the frequency produces in a
// year, used to convert an annual rate to a per-period rate. Returns 0 for an
// unknown frequency.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FreqDaily:
		return 365
	case FreqWeekly:
		return 52
	case FreqBiWeekly:
		return 26
	case FreqMonthly:
		return 12
	case FreqQuarterly:
		return 4
	case FreqYearly:
		return 1
	}
	return 0
}

// Next steps a due date forward by one period.
func (f Frequency) Next(d time.Time) time.Time {
	switch f {
	case FreqDaily:
		return d.AddDate(0, 0, 1)
	case FreqWeekly:
		return d.AddDate(0, 0, 7)
	case FreqBiWeekly:
		return d.AddDate(0, 0, 14)
	case FreqQuarterly:
		return d.AddDate(0, 3, 0)
	case FreqYearly:
		return d.AddDate(1, 0, 0)
	default:
		return d.AddDate(0, 1, 0)
	}
}

type LiabilityStatus string

const (
	LiabilityActive  LiabilityStatus = "active"
	LiabilityPaidOff LiabilityStatus = "paid_off"
	LiabilityDeleted LiabilityStatus = "deleted"
)

type Liability struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UUID             string          `gorm:"uniqueIndex" json:"uuid"`
	UserID           uint            `gorm:"index" json:"user_id"`
	Name             string          `json:"name"`
	Lender           string          `json:"lender"`
	OriginalAmount   decimal.Decimal `gorm:"type:numeric(20,2)" json:"original_amount"`
	CurrentBalance   decimal.Decimal `gorm:"type:numeric(20,2)" json:"current_balance"`
	AnnualRatePct    decimal.Decimal `gorm:"type:numeric(10,4)" json:"annual_rate_pct"`
	PaymentAmount    decimal.Decimal `gorm:"type:numeric(20,2)" json:"payment_amount"`
	Frequency        Frequency       `json:"frequency"`
	InterestIncluded bool            `gorm:"default:true" json:"interest_included"` // payment covers interest; otherwise interest tracked separately
	StartDate        time.Time       `json:"start_date"`
	TargetPayoffDate *time.Time      `json:"target_payoff_date,omitempty"`
	NextDueDate      *time.Time      `json:"next_due_date,omitempty"` // cached soonest upcoming entry
	Status           LiabilityStatus `gorm:"default:active;index" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// LiabilityPayment is an immutable historical payment record.
type LiabilityPayment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"index" json:"user_id"`
	LiabilityID   uint            `gorm:"index" json:"liability_id"`
	AccountID     uint            `json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	Principal     decimal.Decimal `gorm:"type:numeric(20,2)" json:"principal"`
	Interest      decimal.Decimal `gorm:"type:numeric(20,2)" json:"interest"`
	Fees          decimal.Decimal `gorm:"type:numeric(20,2)" json:"fees"`
	Date          time.Time       `json:"date"`
	TransactionID string          `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
