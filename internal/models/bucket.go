package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BucketType tags a partition of an account's balance. The personal portion
// is always derived (balance minus tagged rows) and never stored, so only
// borrowed and goal rows exist in the table.
type BucketType string

const (
	BucketPersonal BucketType = "personal"
	BucketBorrowed BucketType = "borrowed"
	BucketGoal     BucketType = "goal"
)

func (t BucketType) Valid() bool {
	switch t {
	case BucketPersonal, BucketBorrowed, BucketGoal:
		return true
	}
	return false
}

// FundBucket is one stored partition row. ReferenceID is the liability UUID
// for borrowed rows and the goal UUID for goal rows. Rows are deleted when
// their amount reaches zero.
type FundBucket struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index" json:"user_id"`
	AccountID   uint            `gorm:"index:idx_bucket_account_ref" json:"account_id"`
	Type        BucketType      `gorm:"index:idx_bucket_account_ref" json:"type"` // borrowed or goal
	ReferenceID string          `gorm:"index:idx_bucket_account_ref" json:"reference_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type SavingsGoal struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UUID         string          `gorm:"uniqueIndex" json:"uuid"`
	UserID       uint            `gorm:"index" json:"user_id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `gorm:"type:numeric(20,2)" json:"target_amount"`
	TargetDate   *time.Time      `json:"target_date,omitempty"`
	Active       bool            `gorm:"default:true" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
