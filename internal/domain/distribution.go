// Package domain contains the pure bookkeeping types with ZERO
// infrastructure imports. This is the innermost ring — double-entry
// primitives, the envelope model, and the store interfaces the
// application layer depends on.
package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Account Classification ─────────────────────────────────────────────────

// AccountType is one of the five fundamental account classes.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// Valid reports whether the account type is one of the five classes.
func (t AccountType) Valid() bool {
	switch t {
	case AccountAsset, AccountLiability, AccountEquity, AccountRevenue, AccountExpense:
		return true
	}
	return false
}

// FlowDirection says whether a leg represents money leaving (from) or
// arriving at (to) an account.
type FlowDirection string

const (
	FlowFrom FlowDirection = "from"
	FlowTo   FlowDirection = "to"
)

// Valid reports whether the flow direction is from or to.
func (f FlowDirection) Valid() bool {
	return f == FlowFrom || f == FlowTo
}

// DebitCredit is the traditional accounting side of a leg.
type DebitCredit string

const (
	Debit  DebitCredit = "Dr"
	Credit DebitCredit = "Cr"
)

// Multiplier returns the balance sign for an account type and flow
// direction. Total over the 5×2 input space:
//
//	            from   to
//	asset        −1    +1
//	liability    +1    −1
//	equity       +1    −1
//	revenue      +1    −1
//	expense      −1    +1
func Multiplier(t AccountType, flow FlowDirection) int {
	switch t {
	case AccountAsset, AccountExpense:
		if flow == FlowFrom {
			return -1
		}
		return 1
	default:
		if flow == FlowFrom {
			return 1
		}
		return -1
	}
}

// ─── Distribution ───────────────────────────────────────────────────────────

// Distribution is one leg of a journal entry. It is owned exclusively by
// its parent entry and frozen once the entry posts.
type Distribution struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	AccountType AccountType     `json:"account_type"`
	Flow        FlowDirection   `json:"flow_direction"`
	Amount      decimal.Decimal `json:"amount"` // always positive

	// Optional envelope routing. A distribution-level id overrides the
	// account-level default; with neither, the leg has no envelope effect.
	BudgetEnvelopeID  *uuid.UUID `json:"budget_envelope_id,omitempty"`
	PaymentEnvelopeID *uuid.UUID `json:"payment_envelope_id,omitempty"`
}

// Multiplier returns the derived balance sign for this leg.
func (d Distribution) Multiplier() int {
	return Multiplier(d.AccountType, d.Flow)
}

// DebitCredit returns the accounting side of this leg. A to-flow is
// always the debit side, a from-flow the credit side.
func (d Distribution) DebitCredit() DebitCredit {
	if d.Flow == FlowTo {
		return Debit
	}
	return Credit
}

// BalanceImpact returns amount × multiplier, the signed change this leg
// applies to its real account balance.
func (d Distribution) BalanceImpact() decimal.Decimal {
	if d.Multiplier() < 0 {
		return d.Amount.Neg()
	}
	return d.Amount
}

// Validate checks the leg's structural rules.
func (d Distribution) Validate() error {
	if !d.AccountType.Valid() {
		return ErrInvalidAccountType
	}
	if !d.Flow.Valid() {
		return ErrInvalidFlow
	}
	if !d.Amount.IsPositive() {
		return ErrAmountNotPositive
	}
	return nil
}

// ─── Envelope Resolution ────────────────────────────────────────────────────

// ResolveBudgetEnvelope applies the envelope resolution rule: the
// distribution's own budget envelope id wins; otherwise the account's
// default; otherwise nil (no envelope effect).
func ResolveBudgetEnvelope(d Distribution, a Account) *uuid.UUID {
	if d.BudgetEnvelopeID != nil {
		return d.BudgetEnvelopeID
	}
	return a.BudgetEnvelopeID
}

// ResolvePaymentEnvelope is the same rule for payment envelopes.
func ResolvePaymentEnvelope(d Distribution, a Account) *uuid.UUID {
	if d.PaymentEnvelopeID != nil {
		return d.PaymentEnvelopeID
	}
	return a.PaymentEnvelopeID
}
