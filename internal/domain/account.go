package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Chart of Accounts ──────────────────────────────────────────────────────

// Account is one registry entry in the chart of accounts. The optional
// envelope ids are the account-level default routing for distributions
// that do not name an envelope explicitly.
type Account struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"current_balance"`

	BudgetEnvelopeID  *uuid.UUID `json:"budget_envelope_id,omitempty"`
	PaymentEnvelopeID *uuid.UUID `json:"payment_envelope_id,omitempty"`
}

// NewAccount creates an account with a zero opening balance.
func NewAccount(name string, t AccountType) (Account, error) {
	if name == "" {
		return Account{}, ErrEmptyName
	}
	if !t.Valid() {
		return Account{}, ErrInvalidAccountType
	}
	return Account{
		ID:      uuid.New(),
		Name:    name,
		Type:    t,
		Balance: decimal.Zero,
	}, nil
}
