package settlement

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

func snapshot() Snapshot {
	return Snapshot{
		LiabilityUUID: "loan-1",
		RemainingOwed: d("500"),
		Tagged: []TaggedBucket{
			{AccountID: 1, Amount: d("300")},
			{AccountID: 2, Amount: d("200")},
		},
	}
}

func TestSnapshotBalanced(t *testing.T) {
	s := snapshot()
	if s.Balanced() {
		t.Error("snapshot with residuals reported balanced")
	}
	if !s.TaggedTotal().Equal(d("500")) {
		t.Errorf("tagged total = %s, want 500", s.TaggedTotal())
	}
	empty := Snapshot{LiabilityUUID: "loan-2"}
	if !empty.Balanced() {
		t.Error("zero snapshot should be balanced")
	}
}

func TestPlanFullRepayment(t *testing.T) {
	res, err := Plan(snapshot(), []Adjustment{
		{Kind: Repayment, AccountID: 1, Amount: d("300")},
		{Kind: Repayment, AccountID: 2, Amount: d("200")},
	}, TerminalNone)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !res.FinalOwed.IsZero() || !res.FinalTagged.IsZero() {
		t.Errorf("residuals = owed %s, tagged %s", res.FinalOwed, res.FinalTagged)
	}
	if len(res.Effects) != 2 {
		t.Fatalf("got %d effects, want 2", len(res.Effects))
	}
	eff := res.Effects[0]
	if !eff.BucketDelta.Equal(d("-300")) || !eff.AccountDelta.Equal(d("-300")) || !eff.OwedDelta.Equal(d("-300")) {
		t.Errorf("repayment deltas = %+v", eff)
	}
}

func TestPlanAdjustmentKinds(t *testing.T) {
	tests := []struct {
		name        string
		kind        AdjustmentKind
		wantAccount string
		wantOwed    string
	}{
		{"repayment moves all three", Repayment, "-100", "-100"},
		{"refund leaves the debt", Refund, "-100", "0"},
		{"writeoff leaves the debt", ExpenseWriteoff, "-100", "0"},
		{"conversion only relabels", ConvertToPersonal, "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Forgive at the end so the plan always closes.
			res, err := Plan(snapshot(), []Adjustment{
				{Kind: tt.kind, AccountID: 1, Amount: d("100")},
			}, ForgiveDebt)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			eff := res.Effects[0]
			if !eff.BucketDelta.Equal(d("-100")) {
				t.Errorf("bucket delta = %s, want -100", eff.BucketDelta)
			}
			if !eff.AccountDelta.Equal(d(tt.wantAccount)) {
				t.Errorf("account delta = %s, want %s", eff.AccountDelta, tt.wantAccount)
			}
			if !eff.OwedDelta.Equal(d(tt.wantOwed)) {
				t.Errorf("owed delta = %s, want %s", eff.OwedDelta, tt.wantOwed)
			}
		})
	}
}

func TestPlanForgiveDebt(t *testing.T) {
	res, err := Plan(snapshot(), nil, ForgiveDebt)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !res.Forgiven.Equal(d("500")) {
		t.Errorf("forgiven = %s, want 500", res.Forgiven)
	}
	// The still-tagged money stays in the accounts, relabeled as personal.
	if len(res.Effects) != 2 {
		t.Fatalf("got %d sweep effects, want 2", len(res.Effects))
	}
	for _, eff := range res.Effects {
		if eff.Kind != ConvertToPersonal {
			t.Errorf("sweep kind = %s", eff.Kind)
		}
		if !eff.AccountDelta.IsZero() {
			t.Errorf("forgiveness must not move account balances, got %s", eff.AccountDelta)
		}
	}
	if !res.FinalOwed.IsZero() || !res.FinalTagged.IsZero() {
		t.Errorf("residuals = owed %s, tagged %s", res.FinalOwed, res.FinalTagged)
	}
}

func TestPlanEraseFunds(t *testing.T) {
	res, err := Plan(snapshot(), nil, EraseFunds)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !res.Erased.Equal(d("500")) {
		t.Errorf("erased = %s, want 500", res.Erased)
	}
	// Erasure removes the money from the accounts outright.
	for _, eff := range res.Effects {
		if eff.Kind != ExpenseWriteoff {
			t.Errorf("sweep kind = %s", eff.Kind)
		}
		if !eff.AccountDelta.Equal(eff.BucketDelta) {
			t.Errorf("account delta %s != bucket delta %s", eff.AccountDelta, eff.BucketDelta)
		}
	}
	if !res.FinalOwed.IsZero() || !res.FinalTagged.IsZero() {
		t.Errorf("residuals = owed %s, tagged %s", res.FinalOwed, res.FinalTagged)
	}
}

func TestPlanSweepOrderStable(t *testing.T) {
	// The terminal sweep follows the snapshot's account order, so the same
	// plan always yields the same effect list.
	snap := Snapshot{
		LiabilityUUID: "loan-5",
		RemainingOwed: d("60"),
		Tagged: []TaggedBucket{
			{AccountID: 3, Amount: d("10")},
			{AccountID: 1, Amount: d("20")},
			{AccountID: 2, Amount: d("30")},
		},
	}
	for _, terminal := range []TerminalAction{ForgiveDebt, EraseFunds} {
		t.Run(string(terminal), func(t *testing.T) {
			for run := 0; run < 5; run++ {
				res, err := Plan(snap, nil, terminal)
				if err != nil {
					t.Fatalf("Plan: %v", err)
				}
				if len(res.Effects) != 3 {
					t.Fatalf("got %d effects, want 3", len(res.Effects))
				}
				for i, wantAccount := range []uint{3, 1, 2} {
					if res.Effects[i].AccountID != wantAccount {
						t.Fatalf("effect %d on account %d, want %d", i, res.Effects[i].AccountID, wantAccount)
					}
				}
			}
		})
	}
}

func TestPlanResidualBlocksWithoutTerminal(t *testing.T) {
	_, err := Plan(snapshot(), []Adjustment{
		{Kind: Repayment, AccountID: 1, Amount: d("300")},
	}, TerminalNone)
	if !errors.Is(err, ErrUnresolvedResidual) {
		t.Errorf("err = %v, want ErrUnresolvedResidual", err)
	}
}

func TestPlanValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		adjs     []Adjustment
		terminal TerminalAction
		want     error
	}{
		{"non-positive amount",
			[]Adjustment{{Kind: Repayment, AccountID: 1, Amount: decimal.Zero}},
			ForgiveDebt, ErrInvalidAmount},
		{"unknown account",
			[]Adjustment{{Kind: Repayment, AccountID: 9, Amount: d("10")}},
			ForgiveDebt, ErrNoTaggedFunds},
		{"exceeds tagged funds",
			[]Adjustment{{Kind: Refund, AccountID: 2, Amount: d("250")}},
			ForgiveDebt, ErrAdjustmentExceedsFunds},
		{"unknown kind",
			[]Adjustment{{Kind: "donate", AccountID: 1, Amount: d("10")}},
			ForgiveDebt, ErrUnknownAdjustment},
		{"unknown terminal", nil, "vaporize", ErrUnknownTerminal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(snapshot(), tt.adjs, tt.terminal)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPlanRepaymentExceedsOwed(t *testing.T) {
	// More tagged money than debt: paying the full bucket back would
	// overshoot what is owed.
	_, err := Plan(Snapshot{
		LiabilityUUID: "loan-4",
		RemainingOwed: d("100"),
		Tagged:        []TaggedBucket{{AccountID: 1, Amount: d("300")}},
	}, []Adjustment{
		{Kind: Repayment, AccountID: 1, Amount: d("300")},
	}, TerminalNone)
	if !errors.Is(err, ErrAdjustmentExceedsOwed) {
		t.Errorf("err = %v, want ErrAdjustmentExceedsOwed", err)
	}
}

func TestPlanSequentialValidation(t *testing.T) {
	// Each step validates against the working state left by the previous
	// one: the second withdrawal from account 1 sees only what remains.
	_, err := Plan(snapshot(), []Adjustment{
		{Kind: Refund, AccountID: 1, Amount: d("200")},
		{Kind: Repayment, AccountID: 1, Amount: d("150")},
	}, ForgiveDebt)
	if !errors.Is(err, ErrAdjustmentExceedsFunds) {
		t.Errorf("err = %v, want ErrAdjustmentExceedsFunds", err)
	}

	res, err := Plan(snapshot(), []Adjustment{
		{Kind: Refund, AccountID: 1, Amount: d("200")},
		{Kind: Repayment, AccountID: 1, Amount: d("100")},
		{Kind: Repayment, AccountID: 2, Amount: d("200")},
	}, ForgiveDebt)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// 500 owed minus 300 repaid leaves 200 to forgive.
	if !res.Forgiven.Equal(d("200")) {
		t.Errorf("forgiven = %s, want 200", res.Forgiven)
	}
}

func TestPlanMixedCloseout(t *testing.T) {
	// A fully explicit close: repay what the money is there for, convert
	// the rest, and erase nothing.
	res, err := Plan(Snapshot{
		LiabilityUUID: "loan-3",
		RemainingOwed: d("250"),
		Tagged:        []TaggedBucket{{AccountID: 4, Amount: d("400")}},
	}, []Adjustment{
		{Kind: Repayment, AccountID: 4, Amount: d("250")},
		{Kind: ConvertToPersonal, AccountID: 4, Amount: d("150")},
	}, TerminalNone)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if res.Forgiven.IsPositive() || res.Erased.IsPositive() {
		t.Errorf("nothing should be forgiven or erased: %+v", res)
	}
	if !res.FinalOwed.IsZero() || !res.FinalTagged.IsZero() {
		t.Errorf("residuals = owed %s, tagged %s", res.FinalOwed, res.FinalTagged)
	}
}
