package allocation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestAutoAllocateProportional(t *testing.T) {
	allocs, err := AutoAllocate(d("200"), []Candidate{
		{LiabilityUUID: "a", Expected: d("300")},
		{LiabilityUUID: "b", Expected: d("700")},
	})
	if err != nil {
		t.Fatalf("AutoAllocate: %v", err)
	}
	if !allocs[0].Amount.Equal(d("60")) {
		t.Errorf("leg a = %s, want 60", allocs[0].Amount)
	}
	if !allocs[1].Amount.Equal(d("140")) {
		t.Errorf("leg b = %s, want 140", allocs[1].Amount)
	}
}

func TestAutoAllocateResidueConservation(t *testing.T) {
	tests := []struct {
		name       string
		total      string
		candidates []Candidate
	}{
		{"thirds", "100", []Candidate{
			{LiabilityUUID: "a", Expected: d("100")},
			{LiabilityUUID: "b", Expected: d("100")},
			{LiabilityUUID: "c", Expected: d("100")},
		}},
		{"uneven sevenths", "250.01", []Candidate{
			{LiabilityUUID: "a", Expected: d("17")},
			{LiabilityUUID: "b", Expected: d("29")},
			{LiabilityUUID: "c", Expected: d("53")},
		}},
		{"all expectations zero", "99.99", []Candidate{
			{LiabilityUUID: "a"},
			{LiabilityUUID: "b"},
			{LiabilityUUID: "c"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := d(tt.total)
			allocs, err := AutoAllocate(total, tt.candidates)
			if err != nil {
				t.Fatalf("AutoAllocate: %v", err)
			}
			sum := decimal.Zero
			for _, a := range allocs {
				sum = sum.Add(a.Amount)
			}
			if !sum.Equal(total) {
				t.Errorf("legs sum to %s, want %s exactly", sum, total)
			}
		})
	}
}

func TestAutoAllocateSingle(t *testing.T) {
	allocs, err := AutoAllocate(d("512.34"), []Candidate{
		{LiabilityUUID: "only", Expected: d("500"), DefaultInterest: d("41.50")},
	})
	if err != nil {
		t.Fatalf("AutoAllocate: %v", err)
	}
	if !allocs[0].Amount.Equal(d("512.34")) {
		t.Errorf("amount = %s, want full total", allocs[0].Amount)
	}
	if !allocs[0].Interest.Equal(d("41.50")) {
		t.Errorf("interest = %s, want the entry default", allocs[0].Interest)
	}
	if !allocs[0].Principal.Equal(d("470.84")) {
		t.Errorf("principal = %s, want 470.84", allocs[0].Principal)
	}
}

func TestAutoAllocateInterestCapped(t *testing.T) {
	// A tiny leg cannot carry more interest than its own amount.
	allocs, err := AutoAllocate(d("10"), []Candidate{
		{LiabilityUUID: "a", Expected: d("100"), DefaultInterest: d("50")},
	})
	if err != nil {
		t.Fatalf("AutoAllocate: %v", err)
	}
	if !allocs[0].Interest.Equal(d("10")) {
		t.Errorf("interest = %s, want capped at 10", allocs[0].Interest)
	}
	if !allocs[0].Principal.IsZero() {
		t.Errorf("principal = %s, want 0", allocs[0].Principal)
	}
}

func TestAutoAllocateErrors(t *testing.T) {
	if _, err := AutoAllocate(decimal.Zero, []Candidate{{LiabilityUUID: "a"}}); !errors.Is(err, ErrInvalidTotal) {
		t.Errorf("zero total: err = %v", err)
	}
	if _, err := AutoAllocate(d("100"), nil); !errors.Is(err, ErrNoLiabilities) {
		t.Errorf("no candidates: err = %v", err)
	}
}

func TestOverride(t *testing.T) {
	a := Allocation{LiabilityUUID: "a", Amount: d("100"), Interest: d("20"), Principal: d("80")}
	if err := a.Override(d("15"), d("5")); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if !a.Principal.Equal(d("80")) {
		t.Errorf("principal = %s, want 80", a.Principal)
	}
	if err := a.Override(d("70"), d("40")); !errors.Is(err, ErrComponentsExceedLeg) {
		t.Errorf("components over amount: err = %v", err)
	}
	if err := a.Override(d("-1"), decimal.Zero); !errors.Is(err, ErrComponentsExceedLeg) {
		t.Errorf("negative interest: err = %v", err)
	}
}

func TestValidateSum(t *testing.T) {
	allocs := []Allocation{
		{Amount: d("60")},
		{Amount: d("140.01")},
	}
	// One cent of drift is tolerated.
	if err := ValidateSum(allocs, d("200")); err != nil {
		t.Errorf("within tolerance: %v", err)
	}
	if err := ValidateSum(allocs, d("210")); !errors.Is(err, ErrAllocationMismatch) {
		t.Errorf("err = %v, want ErrAllocationMismatch", err)
	}
}

func TestReport(t *testing.T) {
	r := &Report{}
	r.Record("a", nil)
	r.Record("b", errors.New("insufficient funds"))
	if r.AllOK() {
		t.Error("AllOK with a failed leg")
	}
	if len(r.Legs) != 2 || r.Legs[1].Error == "" {
		t.Errorf("legs = %+v", r.Legs)
	}
}
