package settlement

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"finance-ledger-go/internal/ledger"
	"finance-ledger-go/internal/models"
)

var ErrSettlementIncomplete = errors.New("liability is not balanced after settlement")

// Build reads the settlement snapshot for a liability: its current balance
// plus every borrowed bucket across the user's accounts that references it.
func Build(db *gorm.DB, userID uint, li *models.Liability) (*Snapshot, error) {
	buckets, err := ledger.TaggedFunds(db, userID, li.UUID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{LiabilityUUID: li.UUID, RemainingOwed: li.CurrentBalance}
	for _, b := range buckets {
		snap.Tagged = append(snap.Tagged, TaggedBucket{AccountID: b.AccountID, Amount: b.Amount})
	}
	return snap, nil
}

// Execute applies a validated resolution. Each effect is its own atomic
// bucket/account operation; effects already applied are not rolled back when
// a later one fails, and the error names the step that failed. Repayment
// effects record a payment row and decrement the liability balance in the
// same transaction as the bucket movement.
func Execute(db *gorm.DB, userID uint, li *models.Liability, res *Resolution) error {
	for i, eff := range res.Effects {
		ref := ledger.BucketRef{
			AccountID:   eff.AccountID,
			Type:        models.BucketBorrowed,
			ReferenceID: li.UUID,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := ledger.AdjustBucket(tx, userID, ref, eff.BucketDelta, eff.AccountDelta); err != nil {
				return err
			}
			if eff.OwedDelta.IsZero() {
				return nil
			}
			amount := eff.OwedDelta.Neg()
			resl := tx.Model(&models.Liability{}).
				Where("id = ? AND user_id = ? AND current_balance >= ?", li.ID, userID, amount).
				Update("current_balance", gorm.Expr("current_balance - ?", amount))
			if resl.Error != nil {
				return resl.Error
			}
			if resl.RowsAffected == 0 {
				return ErrAdjustmentExceedsOwed
			}
			return tx.Create(&models.LiabilityPayment{
				UserID:      userID,
				LiabilityID: li.ID,
				AccountID:   eff.AccountID,
				Amount:      amount,
				Principal:   amount,
				Date:        time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("settlement step %d (%s): %w", i+1, eff.Kind, err)
		}
	}

	// Forgiveness zeroes the balance outside the payment path; this is the
	// one sanctioned exception to balance-decreases-only-via-payments.
	if res.Forgiven.IsPositive() {
		err := db.Model(&models.Liability{}).
			Where("id = ? AND user_id = ?", li.ID, userID).
			Update("current_balance", decimal.Zero).Error
		if err != nil {
			return err
		}
	}

	// Final gate: re-read both sides and only then soft-delete.
	return db.Transaction(func(tx *gorm.DB) error {
		var fresh models.Liability
		if err := tx.Where("id = ? AND user_id = ?", li.ID, userID).First(&fresh).Error; err != nil {
			return err
		}
		snap, err := Build(tx, userID, &fresh)
		if err != nil {
			return err
		}
		if !snap.Balanced() {
			return ErrSettlementIncomplete
		}
		slog.Info("liability settled",
			"liability", fresh.UUID,
			"forgiven", res.Forgiven, "erased", res.Erased)
		return tx.Model(&models.Liability{}).
			Where("id = ?", fresh.ID).
			Update("status", models.LiabilityDeleted).Error
	})
}
