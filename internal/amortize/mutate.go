package amortize

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"finance-ledger-go/internal/models"
)

var (
	ErrEntryNotFound     = errors.New("schedule entry not found")
	ErrEntryNotMutable   = errors.New("only upcoming entries can be mutated")
	ErrDateOutOfRange    = errors.New("date is outside the allowed window")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrNoUpcomingEntries = errors.New("no remaining upcoming entries")
	ErrUnknownPolicy     = errors.New("unknown mutation policy")
	ErrFinalEntryPinned  = errors.New("final entry amount is fixed by the remaining principal")
)

type SkipPolicy string

const (
	SkipFoldNext    SkipPolicy = "fold_next"
	SkipAppendFinal SkipPolicy = "append_final"
	SkipSpread      SkipPolicy = "spread"
	skipPrepaid     SkipPolicy = "prepaid"
)

type AmountScope string

const (
	AmountSingle        AmountScope = "single"
	AmountPropagateNext AmountScope = "propagate_next"
	AmountAllRemaining  AmountScope = "all_remaining"
)

type ExtraPaymentMode string

const (
	ExtraReducePayment   ExtraPaymentMode = "reduce_payment"
	ExtraReduceTerm      ExtraPaymentMode = "reduce_term"
	ExtraSkipEntries     ExtraPaymentMode = "skip_entries"
	ExtraReducePrincipal ExtraPaymentMode = "reduce_principal"
)

// SkipResult reports which rows a skip touched. Mutations happen in place on
// the given slice; the caller persists them.
type SkipResult struct {
	Cancelled *models.ScheduleEntry
	Updated   []*models.ScheduleEntry
	Appended  *models.ScheduleEntry
}

type PostponeResult struct {
	Entry          *models.ScheduleEntry
	NextDueChanged bool
	NextDue        time.Time
}

type ChangeAmountResult struct {
	Updated []*models.ScheduleEntry
}

// ExtraPaymentResult carries the new balance plus either the cancelled rows
// (skip_entries) or a regenerated unpaid tail replacing ReplacedIDs.
type ExtraPaymentResult struct {
	NewBalance       decimal.Decimal
	NewPaymentAmount decimal.Decimal
	Cancelled        []*models.ScheduleEntry
	ReplacedIDs      []uint
	Tail             []Entry
}

func findEntry(entries []models.ScheduleEntry, entryID uint) (*models.ScheduleEntry, error) {
	for i := range entries {
		if entries[i].ID == entryID {
			return &entries[i], nil
		}
	}
	return nil, ErrEntryNotFound
}

// upcoming returns pointers to the mutable entries in payment-number order.
func upcoming(entries []models.ScheduleEntry) []*models.ScheduleEntry {
	var out []*models.ScheduleEntry
	for i := range entries {
		if entries[i].Status == models.EntryUpcoming {
			out = append(out, &entries[i])
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].PaymentNumber < out[j-1].PaymentNumber; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Skip cancels one upcoming entry and redistributes its amount per the
// chosen policy: folded into the next entry, appended as a new final entry,
// or spread evenly across the remaining upcoming entries.
func Skip(li *models.Liability, entries []models.ScheduleEntry, entryID uint, policy SkipPolicy) (*SkipResult, error) {
	target, err := findEntry(entries, entryID)
	if err != nil {
		return nil, err
	}
	if target.Status.Terminal() {
		return nil, ErrEntryNotMutable
	}

	target.Status = models.EntryCancelled
	target.SkipPolicy = string(policy)
	res := &SkipResult{Cancelled: target}

	rest := []*models.ScheduleEntry{}
	for _, e := range upcoming(entries) {
		if e.ID != target.ID {
			rest = append(rest, e)
		}
	}

	switch policy {
	case SkipFoldNext:
		if len(rest) == 0 {
			return nil, ErrNoUpcomingEntries
		}
		next := rest[0]
		next.Amount = next.Amount.Add(target.Amount)
		next.Principal = next.Principal.Add(target.Principal)
		next.Interest = next.Interest.Add(target.Interest)
		res.Updated = append(res.Updated, next)

	case SkipAppendFinal:
		lastDue := target.DueDate
		lastNum := target.PaymentNumber
		if len(rest) > 0 {
			tailEnd := rest[len(rest)-1]
			lastDue = tailEnd.DueDate
			lastNum = tailEnd.PaymentNumber
		}
		res.Appended = &models.ScheduleEntry{
			UserID:        li.UserID,
			LiabilityID:   li.ID,
			DueDate:       li.Frequency.Next(lastDue),
			Amount:        target.Amount,
			Principal:     target.Principal,
			Interest:      target.Interest,
			PaymentNumber: lastNum + 1,
			Status:        models.EntryUpcoming,
		}

	case SkipSpread:
		if len(rest) == 0 {
			return nil, ErrNoUpcomingEntries
		}
		n := decimal.NewFromInt(int64(len(rest)))
		perAmount := target.Amount.Div(n).Round(2)
		perPrincipal := target.Principal.Div(n).Round(2)
		perInterest := target.Interest.Div(n).Round(2)
		for i, e := range rest {
			a, p, in := perAmount, perPrincipal, perInterest
			if i == len(rest)-1 {
				// The last share absorbs the division residue.
				a = target.Amount.Sub(perAmount.Mul(n.Sub(decimal.NewFromInt(1))))
				p = target.Principal.Sub(perPrincipal.Mul(n.Sub(decimal.NewFromInt(1))))
				in = target.Interest.Sub(perInterest.Mul(n.Sub(decimal.NewFromInt(1))))
			}
			e.Amount = e.Amount.Add(a)
			e.Principal = e.Principal.Add(p)
			e.Interest = e.Interest.Add(in)
			res.Updated = append(res.Updated, e)
		}

	default:
		return nil, ErrUnknownPolicy
	}
	return res, nil
}

// Postpone moves an upcoming entry's due date. The new date may not precede
// today and may not pass the liability's target payoff date. The result says
// whether the liability's cached next-due date needs a refresh.
func Postpone(li *models.Liability, entries []models.ScheduleEntry, entryID uint, newDate, today time.Time) (*PostponeResult, error) {
	target, err := findEntry(entries, entryID)
	if err != nil {
		return nil, err
	}
	if target.Status.Terminal() {
		return nil, ErrEntryNotMutable
	}
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	if day(newDate).Before(day(today)) {
		return nil, ErrDateOutOfRange
	}
	if li.TargetPayoffDate != nil && day(newDate).After(day(*li.TargetPayoffDate)) {
		return nil, ErrDateOutOfRange
	}

	old := target.DueDate
	soonestBefore := soonestDue(entries)
	target.PostponedFrom = &old
	target.DueDate = newDate

	res := &PostponeResult{Entry: target}
	if soonest := soonestDue(entries); !soonest.IsZero() {
		res.NextDue = soonest
		res.NextDueChanged = !soonest.Equal(soonestBefore)
	}
	return res, nil
}

func soonestDue(entries []models.ScheduleEntry) time.Time {
	var soonest time.Time
	for i := range entries {
		if entries[i].Status != models.EntryUpcoming {
			continue
		}
		if soonest.IsZero() || entries[i].DueDate.Before(soonest) {
			soonest = entries[i].DueDate
		}
	}
	return soonest
}

// ChangeAmount updates one or more upcoming entries' amounts. The principal
// split of every touched entry is recomputed from its interest component, and
// the final upcoming entry absorbs the difference so the schedule's principal
// sum is preserved. That makes the final entry's amount a derived value: a
// change targeting it directly is rejected, and under all_remaining its
// amount may land away from the requested value (the returned Updated set
// carries what was actually written).
func ChangeAmount(li *models.Liability, entries []models.ScheduleEntry, entryID uint, newAmount decimal.Decimal, scope AmountScope) (*ChangeAmountResult, error) {
	if !newAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	target, err := findEntry(entries, entryID)
	if err != nil {
		return nil, err
	}
	if target.Status.Terminal() {
		return nil, ErrEntryNotMutable
	}

	up := upcoming(entries)
	if (scope == AmountSingle || scope == AmountAllRemaining) && target == up[len(up)-1] {
		return nil, ErrFinalEntryPinned
	}
	principalSum := decimal.Zero
	for _, e := range up {
		principalSum = principalSum.Add(e.Principal)
	}

	res := &ChangeAmountResult{}
	touch := func(e *models.ScheduleEntry, amount decimal.Decimal) {
		old := e.Amount
		e.AmountChangedFrom = &old
		e.Amount = amount
		res.Updated = append(res.Updated, e)
	}

	switch scope {
	case AmountSingle:
		touch(target, newAmount)
	case AmountPropagateNext:
		delta := target.Amount.Sub(newAmount)
		touch(target, newAmount)
		var next *models.ScheduleEntry
		for _, e := range up {
			if e.PaymentNumber > target.PaymentNumber {
				next = e
				break
			}
		}
		if next == nil {
			return nil, ErrNoUpcomingEntries
		}
		touch(next, next.Amount.Add(delta))
	case AmountAllRemaining:
		for _, e := range up {
			if e.PaymentNumber >= target.PaymentNumber {
				touch(e, newAmount)
			}
		}
	default:
		return nil, ErrUnknownPolicy
	}

	// Re-split every upcoming entry and let the last one absorb the
	// difference, keeping the principal sum invariant intact.
	for _, e := range up {
		e.Principal = e.Amount.Sub(e.Interest)
	}
	last := up[len(up)-1]
	others := decimal.Zero
	for _, e := range up {
		if e != last {
			others = others.Add(e.Principal)
		}
	}
	last.Principal = principalSum.Sub(others)
	if last.Principal.IsNegative() {
		return nil, ErrInvalidAmount
	}
	last.Amount = last.Principal.Add(last.Interest)
	if !containsEntry(res.Updated, last) {
		res.Updated = append(res.Updated, last)
	}
	return res, nil
}

func containsEntry(list []*models.ScheduleEntry, e *models.ScheduleEntry) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}

// ExtraPayment reduces the liability balance by the given amount and applies
// one of four follow-up policies. All but skip_entries regenerate the unpaid
// tail through the engine so the principal sum invariant is re-satisfied.
func ExtraPayment(li *models.Liability, entries []models.ScheduleEntry, amount decimal.Decimal, mode ExtraPaymentMode, skipCount int) (*ExtraPaymentResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.GreaterThan(li.CurrentBalance) {
		return nil, ErrInvalidAmount
	}
	switch mode {
	case ExtraReducePayment, ExtraReduceTerm, ExtraSkipEntries, ExtraReducePrincipal:
	default:
		return nil, ErrUnknownPolicy
	}
	up := upcoming(entries)
	if len(up) == 0 {
		return nil, ErrNoUpcomingEntries
	}

	newBalance := li.CurrentBalance.Sub(amount)
	res := &ExtraPaymentResult{NewBalance: newBalance, NewPaymentAmount: li.PaymentAmount}

	if newBalance.IsZero() {
		// Paid off: every remaining entry is cancelled, nothing to regenerate.
		for _, e := range up {
			e.Status = models.EntryCancelled
			e.SkipPolicy = string(skipPrepaid)
			res.Cancelled = append(res.Cancelled, e)
		}
		return res, nil
	}

	switch mode {
	case ExtraSkipEntries:
		if skipCount <= 0 || skipCount > len(up) {
			return nil, ErrInvalidAmount
		}
		// Interest keeps accruing on the skipped periods; the schedule
		// is deliberately not recomputed here.
		for _, e := range up[:skipCount] {
			e.Status = models.EntryCancelled
			e.SkipPolicy = string(skipPrepaid)
			res.Cancelled = append(res.Cancelled, e)
		}
		return res, nil

	case ExtraReducePayment, ExtraReduceTerm, ExtraReducePrincipal:
		in := ScheduleInput{
			Principal:             newBalance,
			AnnualRatePct:         li.AnnualRatePct,
			StartDate:             up[0].DueDate,
			Frequency:             li.Frequency,
			InterestIncluded:      li.InterestIncluded,
			StartingPaymentNumber: up[0].PaymentNumber,
		}
		switch mode {
		case ExtraReducePayment:
			// Same remaining term, smaller annuity payment.
			in.NumPeriods = len(up)
		case ExtraReduceTerm:
			// Same payment, fewer periods.
			in.PaymentAmount = li.PaymentAmount
		case ExtraReducePrincipal:
			// Same payment and same end-date policy at the new balance.
			in.PaymentAmount = li.PaymentAmount
			in.EndDate = li.TargetPayoffDate
		}
		tail, err := GenerateSchedule(in)
		if err != nil {
			return nil, err
		}
		for _, e := range up {
			res.ReplacedIDs = append(res.ReplacedIDs, e.ID)
		}
		res.Tail = tail
		if mode == ExtraReducePayment && len(tail) > 0 {
			res.NewPaymentAmount = tail[0].Amount
		}
		return res, nil

	default:
		return nil, ErrUnknownPolicy
	}
}
