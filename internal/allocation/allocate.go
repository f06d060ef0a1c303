// Package allocation splits one lump payment across liabilities in
// proportion to their expected periodic payments, and splits each leg into
// principal, interest and fee components.
package allocation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTotal        = errors.New("payment total must be positive")
	ErrNoLiabilities       = errors.New("no liabilities to allocate against")
	ErrAllocationMismatch  = errors.New("allocation sum does not match payment total")
	ErrComponentsExceedLeg = errors.New("interest and fees exceed the allocated amount")
)

var centTolerance = decimal.New(1, -2)

// Candidate is one liability eligible for a share of the payment. Expected
// is its periodic payment; DefaultInterest comes from its current upcoming
// schedule entry and seeds the leg's interest component.
type Candidate struct {
	LiabilityUUID   string
	Expected        decimal.Decimal
	DefaultInterest decimal.Decimal
}

// Allocation is one leg of the split. Principal is always derived:
// amount − interest − fees.
type Allocation struct {
	LiabilityUUID string          `json:"liability_uuid"`
	Amount        decimal.Decimal `json:"amount"`
	Interest      decimal.Decimal `json:"interest"`
	Fees          decimal.Decimal `json:"fees"`
	Principal     decimal.Decimal `json:"principal"`
}

// AutoAllocate splits total proportionally to each candidate's expected
// payment: allocation_i = total × expected_i / Σexpected. Rounding residue
// goes to the largest leg so the amounts always sum back to total. With all
// expectations zero the split is even. N=1 degenerates to the whole total.
func AutoAllocate(total decimal.Decimal, candidates []Candidate) ([]Allocation, error) {
	if !total.IsPositive() {
		return nil, ErrInvalidTotal
	}
	if len(candidates) == 0 {
		return nil, ErrNoLiabilities
	}

	sumExpected := decimal.Zero
	for _, c := range candidates {
		sumExpected = sumExpected.Add(c.Expected)
	}

	allocs := make([]Allocation, len(candidates))
	assigned := decimal.Zero
	largest := 0
	for i, c := range candidates {
		var share decimal.Decimal
		if sumExpected.IsPositive() {
			share = total.Mul(c.Expected).Div(sumExpected).Round(2)
		} else {
			share = total.Div(decimal.NewFromInt(int64(len(candidates)))).Round(2)
		}
		allocs[i] = Allocation{LiabilityUUID: c.LiabilityUUID, Amount: share}
		assigned = assigned.Add(share)
		if share.GreaterThan(allocs[largest].Amount) {
			largest = i
		}
	}

	// Push the rounding residue onto the largest leg.
	if residue := total.Sub(assigned); !residue.IsZero() {
		allocs[largest].Amount = allocs[largest].Amount.Add(residue)
	}

	for i, c := range candidates {
		interest := c.DefaultInterest
		if interest.GreaterThan(allocs[i].Amount) {
			interest = allocs[i].Amount
		}
		if interest.IsNegative() {
			interest = decimal.Zero
		}
		allocs[i].Interest = interest
		allocs[i].Principal = allocs[i].Amount.Sub(interest)
	}

	if err := ValidateSum(allocs, total); err != nil {
		return nil, err
	}
	return allocs, nil
}

// Override replaces a leg's interest/fee components with caller-supplied
// values and re-derives the principal.
func (a *Allocation) Override(interest, fees decimal.Decimal) error {
	if interest.IsNegative() || fees.IsNegative() {
		return ErrComponentsExceedLeg
	}
	if interest.Add(fees).GreaterThan(a.Amount) {
		return ErrComponentsExceedLeg
	}
	a.Interest = interest
	a.Fees = fees
	a.Principal = a.Amount.Sub(interest).Sub(fees)
	return nil
}

// ValidateSum checks the conservation rule: leg amounts must reproduce the
// payment total within one cent. The error names the discrepancy.
func ValidateSum(allocs []Allocation, total decimal.Decimal) error {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Amount)
	}
	if diff := sum.Sub(total); diff.Abs().GreaterThan(centTolerance) {
		return fmt.Errorf("%w: legs sum to %s, total is %s (off by %s)",
			ErrAllocationMismatch, sum.StringFixed(2), total.StringFixed(2), diff.StringFixed(2))
	}
	return nil
}

// LegOutcome records what happened to one leg of a committed multi-liability
// payment.
type LegOutcome struct {
	LiabilityUUID string `json:"liability_uuid"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
}

// Report is the per-leg result of a multi-liability payment. Committed legs
// are never rolled back when a later leg fails; the caller retries only the
// failed legs.
type Report struct {
	Legs []LegOutcome `json:"legs"`
}

func (r *Report) Record(uuid string, err error) {
	leg := LegOutcome{LiabilityUUID: uuid, OK: err == nil}
	if err != nil {
		leg.Error = err.Error()
	}
	r.Legs = append(r.Legs, leg)
}

func (r *Report) AllOK() bool {
	for _, l := range r.Legs {
		if !l.OK {
			return false
		}
	}
	return true
}
