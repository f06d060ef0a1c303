package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountBank            AccountType = "bank"
	AccountCard            AccountType = "card"
	AccountWallet          AccountType = "wallet"
	AccountCash            AccountType = "cash"
	AccountInvestment      AccountType = "investment"
	AccountLiabilityLinked AccountType = "liability_linked"
	AccountGoalLinked      AccountType = "goal_linked"
	AccountOther           AccountType = "other"
)

type Account struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UUID       string          `gorm:"uniqueIndex" json:"uuid"`
	UserID     uint            `gorm:"index" json:"user_id"`
	Type       AccountType     `json:"type"` // bank, card, wallet, cash, investment, liability_linked, goal_linked, other
	Name       string          `json:"name"`
	Color      string          `json:"color"`
	Provider   string          `json:"provider"`   // bank name or issuer
	Identifier string          `json:"identifier"` // last 4 digits or wallet handle
	Currency   string          `gorm:"default:USD" json:"currency"`
	Balance    decimal.Decimal `gorm:"type:numeric(20,2)" json:"balance"`
	IsDefault  bool            `json:"is_default"`
	Active     bool            `gorm:"default:true" json:"active"` // archive is a soft delete
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
