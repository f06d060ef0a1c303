package ledger

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"finance-ledger-go/internal/models"
)

// Breakdown reads one account's bucket partition. Read-only; mutation goes
// through Transfer, Disburse and AdjustBucket.
func Breakdown(db *gorm.DB, userID, accountID uint) (*BucketBreakdown, error) {
	var acct models.Account
	err := db.Where("id = ? AND user_id = ? AND active", accountID, userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	var buckets []models.FundBucket
	if err := db.Where("account_id = ? AND user_id = ?", accountID, userID).
		Order("id").Find(&buckets).Error; err != nil {
		return nil, err
	}
	return ComputeBreakdown(&acct, buckets)
}

// lockAccount loads an account row under FOR UPDATE so concurrent bucket
// mutations on the same account serialize.
func lockAccount(tx *gorm.DB, userID, accountID uint) (*models.Account, error) {
	var acct models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ? AND active", accountID, userID).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func taggedSum(tx *gorm.DB, userID, accountID uint) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&models.FundBucket{}).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Select("SUM(amount)").Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// debitBucketRow decrements a stored bucket row with the sufficiency check in
// the UPDATE itself; zero rows affected means the row is missing or short.
func debitBucketRow(tx *gorm.DB, userID uint, ref BucketRef, amount decimal.Decimal) error {
	res := tx.Model(&models.FundBucket{}).
		Where("account_id = ? AND user_id = ? AND type = ? AND reference_id = ? AND amount >= ?",
			ref.AccountID, userID, ref.Type, ref.ReferenceID, amount).
		Update("amount", gorm.Expr("amount - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		err := tx.Model(&models.FundBucket{}).
			Where("account_id = ? AND user_id = ? AND type = ? AND reference_id = ?",
				ref.AccountID, userID, ref.Type, ref.ReferenceID).
			Count(&exists).Error
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrBucketNotFound
		}
		return ErrInsufficientFunds
	}
	// Zeroed rows are removed rather than kept at 0.00.
	return tx.Where("account_id = ? AND user_id = ? AND type = ? AND reference_id = ? AND amount <= 0",
		ref.AccountID, userID, ref.Type, ref.ReferenceID).
		Delete(&models.FundBucket{}).Error
}

// creditBucketRow increments a stored bucket row, creating it if absent.
func creditBucketRow(tx *gorm.DB, userID uint, ref BucketRef, amount decimal.Decimal) error {
	res := tx.Model(&models.FundBucket{}).
		Where("account_id = ? AND user_id = ? AND type = ? AND reference_id = ?",
			ref.AccountID, userID, ref.Type, ref.ReferenceID).
		Update("amount", gorm.Expr("amount + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return tx.Create(&models.FundBucket{
		UserID:      userID,
		AccountID:   ref.AccountID,
		Type:        ref.Type,
		ReferenceID: ref.ReferenceID,
		Amount:      amount,
	}).Error
}

func adjustAccountBalance(tx *gorm.DB, userID, accountID uint, delta decimal.Decimal) error {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND user_id = ?", accountID, userID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Transfer moves amount from src to dst after validating the rule table. The
// whole movement is one transaction: bucket rows and account balances are
// never individually observable in an inconsistent state.
func Transfer(db *gorm.DB, userID uint, src, dst BucketRef, amount decimal.Decimal) error {
	if err := ValidateTransfer(src, dst, amount); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		// Lock accounts in id order so concurrent opposing transfers
		// cannot deadlock.
		first, second := src.AccountID, dst.AccountID
		if second < first {
			first, second = second, first
		}
		if _, err := lockAccount(tx, userID, first); err != nil {
			return err
		}
		if second != first {
			if _, err := lockAccount(tx, userID, second); err != nil {
				return err
			}
		}

		// Debit the source.
		if src.Type == models.BucketPersonal {
			bd, err := Breakdown(tx, userID, src.AccountID)
			if err != nil {
				return err
			}
			if bd.Personal.LessThan(amount) {
				return ErrInsufficientFunds
			}
		} else {
			if err := debitBucketRow(tx, userID, src, amount); err != nil {
				return err
			}
		}

		// Credit the destination.
		if dst.Type != models.BucketPersonal {
			if err := creditBucketRow(tx, userID, dst, amount); err != nil {
				return err
			}
		}

		// Cross-account moves shift the total balances too.
		if src.AccountID != dst.AccountID {
			if err := adjustAccountBalance(tx, userID, src.AccountID, amount.Neg()); err != nil {
				return err
			}
			if err := adjustAccountBalance(tx, userID, dst.AccountID, amount); err != nil {
				return err
			}
		}

		slog.Info("fund transfer applied",
			"user", userID,
			"from_account", src.AccountID, "from_type", src.Type,
			"to_account", dst.AccountID, "to_type", dst.Type,
			"amount", amount)
		return nil
	})
}

// Disburse records loan principal arriving in an account: the account balance
// and a borrowed bucket for the liability grow together. This is the only
// path that increases a borrowed bucket from outside.
func Disburse(db *gorm.DB, userID, accountID uint, liabilityUUID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockAccount(tx, userID, accountID); err != nil {
			return err
		}
		if err := adjustAccountBalance(tx, userID, accountID, amount); err != nil {
			return err
		}
		ref := BucketRef{AccountID: accountID, Type: models.BucketBorrowed, ReferenceID: liabilityUUID}
		return creditBucketRow(tx, userID, ref, amount)
	})
}

// AdjustBucket applies one atomic bucket/account adjustment: bucketDelta on
// the tagged row and accountDelta on the owning account, in one transaction.
// It aborts without writing if the result would leave the derived personal
// portion negative.
func AdjustBucket(db *gorm.DB, userID uint, ref BucketRef, bucketDelta, accountDelta decimal.Decimal) error {
	if ref.Type == models.BucketPersonal {
		return fmt.Errorf("%w: personal portion is derived, adjust the account directly", ErrTransferNotAllowed)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(tx, userID, ref.AccountID)
		if err != nil {
			return err
		}
		tagged, err := taggedSum(tx, userID, ref.AccountID)
		if err != nil {
			return err
		}
		newPersonal := acct.Balance.Add(accountDelta).Sub(tagged.Add(bucketDelta))
		if newPersonal.IsNegative() {
			return ErrInvariantViolation
		}
		if bucketDelta.IsNegative() {
			if err := debitBucketRow(tx, userID, ref, bucketDelta.Neg()); err != nil {
				return err
			}
		} else if bucketDelta.IsPositive() {
			if err := creditBucketRow(tx, userID, ref, bucketDelta); err != nil {
				return err
			}
		}
		if !accountDelta.IsZero() {
			if accountDelta.IsNegative() && acct.Balance.Add(accountDelta).IsNegative() {
				return ErrInsufficientFunds
			}
			if err := adjustAccountBalance(tx, userID, ref.AccountID, accountDelta); err != nil {
				return err
			}
		}
		return nil
	})
}

// PayFromAccount debits a liability payment from an account. Money tagged to
// that same liability on the account is consumed first, so the derived
// personal portion never absorbs a payment the borrowed bucket should cover.
// Must run inside the caller's transaction.
func PayFromAccount(tx *gorm.DB, userID, accountID uint, liabilityUUID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	acct, err := lockAccount(tx, userID, accountID)
	if err != nil {
		return err
	}
	if acct.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	var bucket models.FundBucket
	bucketAmt := decimal.Zero
	err = tx.Where("account_id = ? AND user_id = ? AND type = ? AND reference_id = ?",
		accountID, userID, models.BucketBorrowed, liabilityUUID).
		First(&bucket).Error
	if err == nil {
		bucketAmt = bucket.Amount
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	fromBucket := decimal.Min(bucketAmt, amount)
	tagged, err := taggedSum(tx, userID, accountID)
	if err != nil {
		return err
	}
	newPersonal := acct.Balance.Sub(amount).Sub(tagged.Sub(fromBucket))
	if newPersonal.IsNegative() {
		return ErrInsufficientFunds
	}

	if fromBucket.IsPositive() {
		ref := BucketRef{AccountID: accountID, Type: models.BucketBorrowed, ReferenceID: liabilityUUID}
		if err := debitBucketRow(tx, userID, ref, fromBucket); err != nil {
			return err
		}
	}
	return adjustAccountBalance(tx, userID, accountID, amount.Neg())
}

// TaggedFunds lists every borrowed bucket across the user's accounts that
// references the given liability.
func TaggedFunds(db *gorm.DB, userID uint, liabilityUUID string) ([]models.FundBucket, error) {
	var buckets []models.FundBucket
	err := db.Where("user_id = ? AND type = ? AND reference_id = ?",
		userID, models.BucketBorrowed, liabilityUUID).
		Order("account_id").Find(&buckets).Error
	return buckets, err
}
