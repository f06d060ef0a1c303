// Package ledger partitions each account's balance into typed fund buckets
// (personal, borrowed, goal) and enforces which bucket-to-bucket movements
// are legal. The personal portion is derived, never stored.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds in source bucket")
	ErrTransferNotAllowed = errors.New("transfer not allowed between these bucket types")
	ErrInvariantViolation = errors.New("bucket sums exceed account balance")
	ErrAccountNotFound    = errors.New("account not found")
	ErrBucketNotFound     = errors.New("bucket not found")
)

// BucketRef identifies one bucket: an account, a type, and for borrowed/goal
// buckets the liability or goal UUID the money is earmarked for.
type BucketRef struct {
	AccountID   uint              `json:"account_id"`
	Type        models.BucketType `json:"type"`
	ReferenceID string            `json:"reference_id,omitempty"`
}

// Portion is one tagged slice of an account's balance.
type Portion struct {
	ReferenceID string          `json:"reference_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// BucketBreakdown is the full partition of one account's balance.
type BucketBreakdown struct {
	AccountID uint            `json:"account_id"`
	Total     decimal.Decimal `json:"total"`
	Personal  decimal.Decimal `json:"personal"`
	Borrowed  []Portion       `json:"borrowed"`
	Goals     []Portion       `json:"goals"`
}

// ComputeBreakdown derives the personal portion from the account balance and
// its stored bucket rows. A negative personal portion means the stored rows
// are inconsistent with the balance and is reported as an invariant
// violation, never clamped.
func ComputeBreakdown(acct *models.Account, buckets []models.FundBucket) (*BucketBreakdown, error) {
	bd := &BucketBreakdown{
		AccountID: acct.ID,
		Total:     acct.Balance,
	}
	tagged := decimal.Zero
	for _, b := range buckets {
		p := Portion{ReferenceID: b.ReferenceID, Amount: b.Amount}
		switch b.Type {
		case models.BucketBorrowed:
			bd.Borrowed = append(bd.Borrowed, p)
		case models.BucketGoal:
			bd.Goals = append(bd.Goals, p)
		default:
			continue // personal rows are never stored
		}
		tagged = tagged.Add(b.Amount)
	}
	bd.Personal = acct.Balance.Sub(tagged)
	if bd.Personal.IsNegative() {
		return nil, ErrInvariantViolation
	}
	return bd, nil
}

// ValidateTransfer decides whether moving amount from src to dst is legal,
// before any balance is touched.
//
// Rule table:
//
//	personal -> personal, borrowed*, goal   (* only via disbursement, so no)
//	goal     -> personal                    (cash-out only)
//	borrowed -> personal, same borrowed bucket (same liability)
//
// A borrowed bucket is never a valid transfer destination except for the
// same-liability case: returning borrowed money to its own earmark on a
// different account.
func ValidateTransfer(src, dst BucketRef, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !src.Type.Valid() || !dst.Type.Valid() {
		return ErrTransferNotAllowed
	}
	switch src.Type {
	case models.BucketPersonal:
		switch dst.Type {
		case models.BucketPersonal, models.BucketGoal:
			return nil
		case models.BucketBorrowed:
			// Borrowed balances only grow at disbursement.
			return ErrTransferNotAllowed
		}
	case models.BucketGoal:
		if dst.Type == models.BucketPersonal {
			return nil
		}
		return ErrTransferNotAllowed
	case models.BucketBorrowed:
		switch dst.Type {
		case models.BucketPersonal:
			return nil
		case models.BucketBorrowed:
			if src.ReferenceID == dst.ReferenceID && src.ReferenceID != "" {
				return nil
			}
			return ErrTransferNotAllowed
		default:
			return ErrTransferNotAllowed
		}
	}
	return ErrTransferNotAllowed
}
