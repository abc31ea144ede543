package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Rollover Policies ──────────────────────────────────────────────────────

// RolloverPolicy governs how a budget envelope's balance carries between
// allocation periods.
type RolloverPolicy string

const (
	RolloverReset      RolloverPolicy = "reset"
	RolloverAccumulate RolloverPolicy = "accumulate"
	RolloverCap        RolloverPolicy = "cap"
)

// Valid reports whether the policy is one of the three rollover modes.
func (p RolloverPolicy) Valid() bool {
	return p == RolloverReset || p == RolloverAccumulate || p == RolloverCap
}

// ApplyRollover returns the envelope balance after one allocation step.
// Under reset the old balance is discarded, not returned to available —
// that is the documented reset semantics. Under cap the clamp applies at
// every step; the unapplied remainder is implicitly released back to
// available and never tracked as a discrete transaction.
func ApplyRollover(p RolloverPolicy, capMax, old, allocation decimal.Decimal) decimal.Decimal {
	switch p {
	case RolloverReset:
		return allocation
	case RolloverCap:
		next := old.Add(allocation)
		if next.GreaterThan(capMax) {
			return capMax
		}
		return next
	default: // accumulate
		return old.Add(allocation)
	}
}

// ─── Budget Envelope ────────────────────────────────────────────────────────

// BudgetEnvelope is a virtual accumulator tracking money set aside for a
// spending category. It holds no money itself; its balance is metadata
// against the funding account's real balance. Envelopes are never
// deleted, only deactivated.
type BudgetEnvelope struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	FundingAccountID  uuid.UUID       `json:"funding_account_id"` // backing bank (asset) account
	MonthlyAllocation decimal.Decimal `json:"monthly_allocation"`
	Rollover          RolloverPolicy  `json:"rollover_policy"`
	CapMax            decimal.Decimal `json:"cap_max,omitempty"` // only meaningful under cap

	Balance decimal.Decimal `json:"current_balance"`

	// AllocatedThisPeriod is the requested monthly allocation for the
	// current period, not the balance delta actually applied — reset
	// and cap can apply less (or more). The applied delta is recorded
	// on the period's BudgetAllocation.
	AllocatedThisPeriod decimal.Decimal `json:"allocated_this_period"`
	SpentThisPeriod     decimal.Decimal `json:"spent_this_period"`
	LastAllocatedPeriod string          `json:"last_allocated_period,omitempty"` // "YYYY-MM"
	Active              bool            `json:"active"`
}

// NewBudgetEnvelope creates an active envelope with a zero balance.
func NewBudgetEnvelope(name string, funding uuid.UUID, monthly decimal.Decimal, policy RolloverPolicy, capMax decimal.Decimal) (BudgetEnvelope, error) {
	if name == "" {
		return BudgetEnvelope{}, ErrEmptyName
	}
	if !policy.Valid() {
		return BudgetEnvelope{}, ErrInvalidRollover
	}
	if policy == RolloverCap && !capMax.IsPositive() {
		return BudgetEnvelope{}, ErrInvalidRollover
	}
	return BudgetEnvelope{
		ID:                uuid.New(),
		Name:              name,
		FundingAccountID:  funding,
		MonthlyAllocation: monthly,
		Rollover:          policy,
		CapMax:            capMax,
		Balance:           decimal.Zero,
		Active:            true,
	}, nil
}

// ─── Payment Envelope ───────────────────────────────────────────────────────

// PaymentEnvelope reserves money against a liability account: its
// balance is the amount set aside to pay that liability off.
type PaymentEnvelope struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	FundingAccountID uuid.UUID       `json:"funding_account_id"`
	LinkedAccountID  uuid.UUID       `json:"linked_account_id"` // the liability account
	Balance          decimal.Decimal `json:"current_balance"`
	Active           bool            `json:"active"`
}

// NewPaymentEnvelope creates an active payment envelope with a zero
// reservation.
func NewPaymentEnvelope(name string, funding, linked uuid.UUID) (PaymentEnvelope, error) {
	if name == "" {
		return PaymentEnvelope{}, ErrEmptyName
	}
	return PaymentEnvelope{
		ID:               uuid.New(),
		Name:             name,
		FundingAccountID: funding,
		LinkedAccountID:  linked,
		Balance:          decimal.Zero,
		Active:           true,
	}, nil
}

// ─── Audit Records ──────────────────────────────────────────────────────────

// BudgetAllocation is the immutable audit record of one allocation
// event. Requested is the envelope's monthly allocation; Applied is the
// actual balance delta, which differs under reset and cap.
type BudgetAllocation struct {
	ID              uuid.UUID       `json:"id"`
	SourceAccountID uuid.UUID       `json:"source_account_id"`
	EnvelopeID      uuid.UUID       `json:"envelope_id"`
	Requested       decimal.Decimal `json:"requested"`
	Applied         decimal.Decimal `json:"applied"`
	Period          string          `json:"period"`
	Date            time.Time       `json:"date"`
}

// EnvelopeTxnType classifies an envelope balance change.
type EnvelopeTxnType string

const (
	TxnAllocation EnvelopeTxnType = "allocation"
	TxnExpense    EnvelopeTxnType = "expense"
	TxnRefund     EnvelopeTxnType = "refund"
	TxnCharge     EnvelopeTxnType = "charge"
	TxnPayment    EnvelopeTxnType = "payment"
	TxnCredit     EnvelopeTxnType = "credit"
)

// EnvelopeTransaction is one row in the append-only envelope audit
// trail. Every balance change to any envelope produces exactly one,
// linked back to the journal distribution or allocation that caused it.
// Rows are never mutated or deleted.
type EnvelopeTransaction struct {
	ID           uuid.UUID       `json:"id"`
	EnvelopeID   uuid.UUID       `json:"envelope_id"`
	Type         EnvelopeTxnType `json:"type"`
	Amount       decimal.Decimal `json:"amount"` // signed balance delta
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Date         time.Time       `json:"date"`

	JournalEntryID *uuid.UUID `json:"journal_entry_id,omitempty"`
	DistributionID *uuid.UUID `json:"distribution_id,omitempty"`
	AllocationID   *uuid.UUID `json:"allocation_id,omitempty"`
}

// ─── Bank Account View ──────────────────────────────────────────────────────

// BankAccountView is the read-only projection behind the fundamental
// equation: bank balance = budget allocated + payment reserved +
// available to allocate. Never persisted; recomputed on demand.
type BankAccountView struct {
	AccountID           uuid.UUID       `json:"account_id"`
	AsOf                time.Time       `json:"as_of"`
	BankBalance         decimal.Decimal `json:"bank_balance"`
	BudgetAllocated     decimal.Decimal `json:"budget_allocated"`
	PaymentReserved     decimal.Decimal `json:"payment_reserved"`
	AvailableToAllocate decimal.Decimal `json:"available_to_allocate"`
}

// EquationCheck is the per-term breakdown produced by the equation
// validator. StoredTotal sums the current envelope balances; DerivedTotal
// re-derives them from the audit trail. A nonzero Difference means a
// posting bug.
type EquationCheck struct {
	View         BankAccountView `json:"view"`
	StoredTotal  decimal.Decimal `json:"stored_total"`
	DerivedTotal decimal.Decimal `json:"derived_total"`
	Difference   decimal.Decimal `json:"difference"`
}

// Balanced reports whether the stored and derived totals agree to
// currency precision (a cent).
func (c EquationCheck) Balanced() bool {
	return c.Difference.Abs().LessThanOrEqual(decimal.New(1, -2))
}

// ─── Period Labels ──────────────────────────────────────────────────────────

// PeriodOf returns the allocation period label for a date, "YYYY-MM".
func PeriodOf(t time.Time) string {
	return t.Format("2006-01")
}
