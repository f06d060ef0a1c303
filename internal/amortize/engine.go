// Package amortize generates and mutates liability payment schedules. All
// arithmetic is decimal; rounding residue is absorbed into the final entry so
// the principal components of a schedule always sum back to the principal
// they were generated from.
package amortize

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
)

var (
	ErrInvalidPrincipal   = errors.New("principal must be positive")
	ErrInvalidFrequency   = errors.New("unknown payment frequency")
	ErrNegativeRate       = errors.New("interest rate cannot be negative")
	ErrNoTermOrPayment    = errors.New("either a payment amount or a period count is required")
	ErrPaymentTooSmall    = errors.New("payment does not cover the first period's interest")
	ErrInvariantViolation = errors.New("schedule principal does not sum to the generated principal")
)

// centTolerance is the acceptable rounding drift on a schedule's principal sum.
var centTolerance = decimal.New(1, -2)

// ScheduleInput describes one schedule generation run. When PaymentAmount is
// zero the payment is derived from the annuity formula, which requires a
// period count (explicit, or derived from EndDate). StartingPaymentNumber
// lets a regenerated unpaid tail continue the numbering of already-paid
// entries.
type ScheduleInput struct {
	Principal             decimal.Decimal
	AnnualRatePct         decimal.Decimal
	PaymentAmount         decimal.Decimal
	NumPeriods            int
	StartDate             time.Time
	EndDate               *time.Time
	Frequency             models.Frequency
	InterestIncluded      bool
	StartingPaymentNumber int
}

// Entry is one generated schedule row, not yet persisted.
type Entry struct {
	DueDate       time.Time
	Amount        decimal.Decimal
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	PaymentNumber int
}

// PeriodRate converts an annual percentage rate to a per-period rate.
func PeriodRate(annualRatePct decimal.Decimal, freq models.Frequency) decimal.Decimal {
	ppy := freq.PeriodsPerYear()
	if ppy == 0 {
		return decimal.Zero
	}
	return annualRatePct.Div(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(ppy)))
}

// AnnuityPayment computes the standard annuity payment
// P·r·(1+r)^n / ((1+r)^n − 1), or P/n when the rate is zero.
func AnnuityPayment(principal, periodRate decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	nd := decimal.NewFromInt(int64(n))
	if periodRate.IsZero() {
		return principal.Div(nd).Round(2)
	}
	one := decimal.NewFromInt(1)
	compound := one.Add(periodRate).Pow(nd)
	return principal.Mul(periodRate).Mul(compound).
		Div(compound.Sub(one)).Round(2)
}

// periodsUntil counts how many due dates fit between start (inclusive) and
// end (inclusive) at the given frequency.
func periodsUntil(start, end time.Time, freq models.Frequency) int {
	n := 0
	for d := start; !d.After(end); d = freq.Next(d) {
		n++
	}
	return n
}

// GenerateSchedule produces the amortized entries for the input. The first
// entry falls due on StartDate; entries past EndDate are not emitted and any
// remaining principal is folded into the final entry instead, so the
// principal components always sum to Principal.
func GenerateSchedule(in ScheduleInput) ([]Entry, error) {
	if !in.Principal.IsPositive() {
		return nil, ErrInvalidPrincipal
	}
	if in.AnnualRatePct.IsNegative() {
		return nil, ErrNegativeRate
	}
	if in.Frequency.PeriodsPerYear() == 0 {
		return nil, ErrInvalidFrequency
	}

	rate := PeriodRate(in.AnnualRatePct, in.Frequency)

	n := in.NumPeriods
	if n == 0 && in.EndDate != nil {
		n = periodsUntil(in.StartDate, *in.EndDate, in.Frequency)
	}

	payment := in.PaymentAmount
	if payment.IsZero() {
		if n == 0 {
			return nil, ErrNoTermOrPayment
		}
		payment = AnnuityPayment(in.Principal, rate, n)
	}

	firstInterest := in.Principal.Mul(rate).Round(2)
	if in.InterestIncluded && !payment.GreaterThan(firstInterest) {
		return nil, ErrPaymentTooSmall
	}

	startNum := in.StartingPaymentNumber
	if startNum == 0 {
		startNum = 1
	}

	var entries []Entry
	remaining := in.Principal
	due := in.StartDate
	for i := 0; remaining.IsPositive(); i++ {
		if n > 0 && i >= n {
			break
		}
		if in.EndDate != nil && due.After(*in.EndDate) {
			break
		}

		interest := remaining.Mul(rate).Round(2)
		var principal decimal.Decimal
		var amount decimal.Decimal
		if in.InterestIncluded {
			principal = payment.Sub(interest)
			amount = payment
		} else {
			// Interest is tracked separately; the full payment
			// amount retires principal.
			principal = payment
			amount = payment
		}
		if principal.GreaterThanOrEqual(remaining) {
			principal = remaining
			if in.InterestIncluded {
				amount = principal.Add(interest)
			} else {
				amount = principal
			}
		}

		entries = append(entries, Entry{
			DueDate:       due,
			Amount:        amount,
			Principal:     principal,
			Interest:      interest,
			PaymentNumber: startNum + i,
		})
		remaining = remaining.Sub(principal)
		due = in.Frequency.Next(due)
	}

	if len(entries) == 0 {
		return nil, ErrNoTermOrPayment
	}

	// Whatever the term or end date left unamortized balloons into the
	// final entry; rounding residue lands here too.
	if remaining.IsPositive() {
		last := &entries[len(entries)-1]
		last.Principal = last.Principal.Add(remaining)
		last.Amount = last.Amount.Add(remaining)
	}

	if err := VerifyPrincipalSum(entries, in.Principal); err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyPrincipalSum re-checks that a schedule's principal components sum to
// the expected principal within one cent. A failure aborts before any write.
func VerifyPrincipalSum(entries []Entry, principal decimal.Decimal) error {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Principal)
	}
	if sum.Sub(principal).Abs().GreaterThan(centTolerance) {
		return ErrInvariantViolation
	}
	return nil
}
