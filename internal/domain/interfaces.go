package domain

import (
	"github.com/google/uuid"
)

// ─── Store Interface ────────────────────────────────────────────────────────
// The engine is storage-agnostic: callers inject a Store (in-memory map
// for tests, SQLite for production). Reads return copies — a consistent
// snapshot relative to any in-flight write. The two Apply methods are
// the transaction boundaries: either the whole batch lands or none of
// it does.

// PostingBatch is everything one post mutates, applied atomically.
type PostingBatch struct {
	Entry            JournalEntry
	Accounts         []Account
	BudgetEnvelopes  []BudgetEnvelope
	PaymentEnvelopes []PaymentEnvelope
	EnvelopeTxns     []EnvelopeTransaction
}

// AllocationBatch is everything one allocation run mutates, applied
// atomically. Allocation never touches real account balances.
type AllocationBatch struct {
	Envelopes    []BudgetEnvelope
	Allocations  []BudgetAllocation
	EnvelopeTxns []EnvelopeTransaction
}

// Store abstracts persistence for the whole ledger.
type Store interface {
	Account(id uuid.UUID) (Account, error)
	Accounts() ([]Account, error)
	SaveAccount(a Account) error

	BudgetEnvelope(id uuid.UUID) (BudgetEnvelope, error)
	BudgetEnvelopes() ([]BudgetEnvelope, error)
	SaveBudgetEnvelope(e BudgetEnvelope) error

	PaymentEnvelope(id uuid.UUID) (PaymentEnvelope, error)
	PaymentEnvelopes() ([]PaymentEnvelope, error)
	SavePaymentEnvelope(e PaymentEnvelope) error

	JournalEntry(id uuid.UUID) (JournalEntry, error)
	JournalEntries() ([]JournalEntry, error)
	SaveJournalEntry(e JournalEntry) error

	RecurringTemplates() ([]RecurringJournalEntry, error)
	SaveRecurringTemplate(t RecurringJournalEntry) error

	EnvelopeTransactions(envelopeID uuid.UUID) ([]EnvelopeTransaction, error)
	Allocations(period string) ([]BudgetAllocation, error)

	ApplyPosting(b PostingBatch) error
	ApplyAllocation(b AllocationBatch) error
}

// ─── Validation Results ─────────────────────────────────────────────────────

// ValidationResult is the structured outcome of an advisory check.
// Advisory checks never fail with an error; callers decide whether a
// warning blocks anything.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Warning string `json:"warning,omitempty"`
}
