// Package settlement drives a liability's remaining balance and its tagged
// fund buckets to zero through typed adjustments, as the precondition for
// deleting the liability. No money may silently appear or disappear: every
// adjustment states exactly how it moves the bucket, the account balance and
// the amount owed.
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount          = errors.New("adjustment amount must be positive")
	ErrUnknownAdjustment      = errors.New("unknown adjustment kind")
	ErrUnknownTerminal        = errors.New("unknown terminal action")
	ErrNoTaggedFunds          = errors.New("account holds no tagged funds for this liability")
	ErrAdjustmentExceedsFunds = errors.New("adjustment exceeds tagged funds on account")
	ErrAdjustmentExceedsOwed  = errors.New("repayment exceeds remaining owed")
	ErrUnresolvedResidual     = errors.New("residual remains; a terminal action is required")
)

type AdjustmentKind string

const (
	// Repayment is a normal payment out of the tagged funds: bucket,
	// account balance and remaining owed all decrease.
	Repayment AdjustmentKind = "repayment"
	// Refund returns borrowed money un-spent: bucket and account balance
	// decrease, the debt is untouched.
	Refund AdjustmentKind = "refund"
	// ConvertToPersonal re-labels tagged money as personal: only the
	// bucket decreases, the account total stays.
	ConvertToPersonal AdjustmentKind = "convert_to_personal"
	// ExpenseWriteoff marks tagged money as spent: bucket and account
	// balance decrease, the debt remains.
	ExpenseWriteoff AdjustmentKind = "expense_writeoff"
)

type TerminalAction string

const (
	TerminalNone TerminalAction = ""
	// ForgiveDebt zeroes the remaining owed and re-labels any still-tagged
	// funds as personal, leaving the money in place.
	ForgiveDebt TerminalAction = "forgive_debt"
	// EraseFunds removes any still-tagged funds from their accounts and
	// writes the remaining owed off as a loss.
	EraseFunds TerminalAction = "erase_funds"
)

// TaggedBucket is the borrowed-bucket balance one account holds for the
// liability being settled.
type TaggedBucket struct {
	AccountID uint            `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Snapshot is the settlement state of one liability: what is still owed and
// which accounts still hold money tagged to it.
type Snapshot struct {
	LiabilityUUID string          `json:"liability_uuid"`
	RemainingOwed decimal.Decimal `json:"remaining_owed"`
	Tagged        []TaggedBucket  `json:"tagged"`
}

func (s *Snapshot) TaggedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.Tagged {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Balanced reports whether the liability is deletable with no adjustment.
func (s *Snapshot) Balanced() bool {
	return s.RemainingOwed.IsZero() && s.TaggedTotal().IsZero()
}

// Adjustment is one caller-supplied settlement step.
type Adjustment struct {
	Kind      AdjustmentKind  `json:"kind"`
	AccountID uint            `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Effect is the computed delta set of one step: how the tagged bucket, the
// account balance and the remaining owed move. Deltas are signed.
type Effect struct {
	Kind         AdjustmentKind  `json:"kind"`
	AccountID    uint            `json:"account_id"`
	BucketDelta  decimal.Decimal `json:"bucket_delta"`
	AccountDelta decimal.Decimal `json:"account_delta"`
	OwedDelta    decimal.Decimal `json:"owed_delta"`
}

// Resolution is a fully validated settlement plan: the per-step effects, the
// terminal sweep, and the final residuals (both zero on success).
type Resolution struct {
	Effects     []Effect        `json:"effects"`
	Terminal    TerminalAction  `json:"terminal,omitempty"`
	Forgiven    decimal.Decimal `json:"forgiven"`
	Erased      decimal.Decimal `json:"erased"`
	FinalOwed   decimal.Decimal `json:"final_owed"`
	FinalTagged decimal.Decimal `json:"final_tagged"`
}

// Plan validates an ordered adjustment list plus at most one terminal action
// against the snapshot and computes every delta. Nothing is applied here; a
// failed validation leaves no trace. The returned resolution has both
// residuals at zero, otherwise Plan fails.
func Plan(snap Snapshot, adjs []Adjustment, terminal TerminalAction) (*Resolution, error) {
	owed := snap.RemainingOwed
	tagged := map[uint]decimal.Decimal{}
	for _, t := range snap.Tagged {
		tagged[t.AccountID] = t.Amount
	}

	res := &Resolution{}
	for i, adj := range adjs {
		if !adj.Amount.IsPositive() {
			return nil, fmt.Errorf("step %d: %w", i+1, ErrInvalidAmount)
		}
		avail, ok := tagged[adj.AccountID]
		if !ok {
			return nil, fmt.Errorf("step %d (account %d): %w", i+1, adj.AccountID, ErrNoTaggedFunds)
		}
		if adj.Amount.GreaterThan(avail) {
			return nil, fmt.Errorf("step %d (account %d): %w: have %s, need %s",
				i+1, adj.AccountID, ErrAdjustmentExceedsFunds, avail.StringFixed(2), adj.Amount.StringFixed(2))
		}

		eff := Effect{Kind: adj.Kind, AccountID: adj.AccountID, BucketDelta: adj.Amount.Neg()}
		switch adj.Kind {
		case Repayment:
			if adj.Amount.GreaterThan(owed) {
				return nil, fmt.Errorf("step %d: %w: owed %s, paying %s",
					i+1, ErrAdjustmentExceedsOwed, owed.StringFixed(2), adj.Amount.StringFixed(2))
			}
			eff.AccountDelta = adj.Amount.Neg()
			eff.OwedDelta = adj.Amount.Neg()
		case Refund, ExpenseWriteoff:
			eff.AccountDelta = adj.Amount.Neg()
		case ConvertToPersonal:
			// Pure reclassification.
		default:
			return nil, fmt.Errorf("step %d: %w: %q", i+1, ErrUnknownAdjustment, adj.Kind)
		}

		tagged[adj.AccountID] = avail.Sub(adj.Amount)
		owed = owed.Add(eff.OwedDelta)
		res.Effects = append(res.Effects, eff)
	}

	taggedLeft := decimal.Zero
	for _, v := range tagged {
		taggedLeft = taggedLeft.Add(v)
	}

	switch terminal {
	case TerminalNone:
		if !owed.IsZero() || !taggedLeft.IsZero() {
			return nil, fmt.Errorf("%w: owed %s, tagged %s",
				ErrUnresolvedResidual, owed.StringFixed(2), taggedLeft.StringFixed(2))
		}
	case ForgiveDebt:
		res.Forgiven = owed
		// Sweep in snapshot order so identical plans produce identical
		// effect lists.
		for _, t := range snap.Tagged {
			if v := tagged[t.AccountID]; v.IsPositive() {
				res.Effects = append(res.Effects, Effect{
					Kind: ConvertToPersonal, AccountID: t.AccountID, BucketDelta: v.Neg(),
				})
				tagged[t.AccountID] = decimal.Zero
			}
		}
		owed, taggedLeft = decimal.Zero, decimal.Zero
	case EraseFunds:
		res.Erased = taggedLeft
		for _, t := range snap.Tagged {
			if v := tagged[t.AccountID]; v.IsPositive() {
				res.Effects = append(res.Effects, Effect{
					Kind: ExpenseWriteoff, AccountID: t.AccountID, BucketDelta: v.Neg(), AccountDelta: v.Neg(),
				})
				tagged[t.AccountID] = decimal.Zero
			}
		}
		res.Forgiven = owed // written off as a loss
		owed, taggedLeft = decimal.Zero, decimal.Zero
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTerminal, terminal)
	}

	res.Terminal = terminal
	res.FinalOwed = owed
	res.FinalTagged = taggedLeft
	return res, nil
}
