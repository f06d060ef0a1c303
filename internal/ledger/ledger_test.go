package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestValidateTransfer(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tests := []struct {
		name string
		src  BucketRef
		dst  BucketRef
		want error
	}{
		{"personal to personal",
			BucketRef{AccountID: 1, Type: models.BucketPersonal},
			BucketRef{AccountID: 2, Type: models.BucketPersonal}, nil},
		{"personal to goal",
			BucketRef{AccountID: 1, Type: models.BucketPersonal},
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g1"}, nil},
		{"personal to borrowed",
			BucketRef{AccountID: 1, Type: models.BucketPersonal},
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"}, ErrTransferNotAllowed},
		{"goal to personal",
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g1"},
			BucketRef{AccountID: 1, Type: models.BucketPersonal}, nil},
		{"goal to goal",
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g1"},
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g2"}, ErrTransferNotAllowed},
		{"goal to borrowed",
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g1"},
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"}, ErrTransferNotAllowed},
		{"borrowed to personal",
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"},
			BucketRef{AccountID: 1, Type: models.BucketPersonal}, nil},
		{"borrowed to same liability other account",
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"},
			BucketRef{AccountID: 2, Type: models.BucketBorrowed, ReferenceID: "l1"}, nil},
		{"borrowed to other liability",
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"},
			BucketRef{AccountID: 2, Type: models.BucketBorrowed, ReferenceID: "l2"}, ErrTransferNotAllowed},
		{"borrowed to goal",
			BucketRef{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "l1"},
			BucketRef{AccountID: 1, Type: models.BucketGoal, ReferenceID: "g1"}, ErrTransferNotAllowed},
		{"unknown bucket type",
			BucketRef{AccountID: 1, Type: "escrow"},
			BucketRef{AccountID: 1, Type: models.BucketPersonal}, ErrTransferNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransfer(tt.src, tt.dst, ten)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateTransferAmount(t *testing.T) {
	src := BucketRef{AccountID: 1, Type: models.BucketPersonal}
	dst := BucketRef{AccountID: 2, Type: models.BucketPersonal}
	if err := ValidateTransfer(src, dst, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v", err)
	}
	if err := ValidateTransfer(src, dst, decimal.NewFromInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative amount: err = %v", err)
	}
}

func TestComputeBreakdown(t *testing.T) {
	acct := &models.Account{ID: 1, Balance: d("1000")}
	buckets := []models.FundBucket{
		{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "loan-a", Amount: d("300")},
		{AccountID: 1, Type: models.BucketGoal, ReferenceID: "goal-car", Amount: d("150.50")},
	}

	bd, err := ComputeBreakdown(acct, buckets)
	if err != nil {
		t.Fatalf("ComputeBreakdown: %v", err)
	}
	if !bd.Personal.Equal(d("549.50")) {
		t.Errorf("personal = %s, want 549.50", bd.Personal)
	}
	if len(bd.Borrowed) != 1 || bd.Borrowed[0].ReferenceID != "loan-a" {
		t.Errorf("borrowed portions = %+v", bd.Borrowed)
	}
	if len(bd.Goals) != 1 || !bd.Goals[0].Amount.Equal(d("150.50")) {
		t.Errorf("goal portions = %+v", bd.Goals)
	}

	// The partition must reproduce the account total.
	sum := bd.Personal
	for _, p := range bd.Borrowed {
		sum = sum.Add(p.Amount)
	}
	for _, p := range bd.Goals {
		sum = sum.Add(p.Amount)
	}
	if !sum.Equal(acct.Balance) {
		t.Errorf("partition sums to %s, balance is %s", sum, acct.Balance)
	}
}

func TestComputeBreakdownNoBuckets(t *testing.T) {
	acct := &models.Account{ID: 1, Balance: d("42")}
	bd, err := ComputeBreakdown(acct, nil)
	if err != nil {
		t.Fatalf("ComputeBreakdown: %v", err)
	}
	if !bd.Personal.Equal(d("42")) {
		t.Errorf("personal = %s, want full balance", bd.Personal)
	}
}

func TestComputeBreakdownOvercommitted(t *testing.T) {
	acct := &models.Account{ID: 1, Balance: d("100")}
	buckets := []models.FundBucket{
		{AccountID: 1, Type: models.BucketBorrowed, ReferenceID: "loan-a", Amount: d("80")},
		{AccountID: 1, Type: models.BucketGoal, ReferenceID: "goal-b", Amount: d("30")},
	}
	// Tagged 110 against a balance of 100: the derived personal portion
	// would be negative, which must surface as an error, never a clamp.
	if _, err := ComputeBreakdown(acct, buckets); !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("err = %v, want ErrInvariantViolation", err)
	}
}
