package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Journal Entry ──────────────────────────────────────────────────────────

// EntryStatus is the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusDraft  EntryStatus = "draft"
	StatusPosted EntryStatus = "posted"
	StatusVoid   EntryStatus = "void"
)

// JournalEntry is a balancing set of distributions. Entries are created
// as drafts and may be mutated only while draft; posting freezes the
// distributions and applies envelope side effects exactly once.
type JournalEntry struct {
	ID            uuid.UUID      `json:"id"`
	Date          time.Time      `json:"entry_date"`
	Memo          string         `json:"memo,omitempty"`
	Status        EntryStatus    `json:"status"`
	Distributions []Distribution `json:"distributions"`
	PostedAt      *time.Time     `json:"posted_at,omitempty"`
}

// NewJournalEntry creates an empty draft entry dated d.
func NewJournalEntry(d time.Time, memo string) *JournalEntry {
	return &JournalEntry{
		ID:     uuid.New(),
		Date:   d,
		Memo:   memo,
		Status: StatusDraft,
	}
}

// AddDistribution appends a leg to a draft entry. Posted and void
// entries are frozen.
func (e *JournalEntry) AddDistribution(d Distribution) error {
	if e.Status != StatusDraft {
		return ErrEntryNotDraft
	}
	if err := d.Validate(); err != nil {
		return err
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	e.Distributions = append(e.Distributions, d)
	return nil
}

// FromTotal sums the amounts of all from-flow legs.
func (e *JournalEntry) FromTotal() decimal.Decimal {
	return e.flowTotal(FlowFrom)
}

// ToTotal sums the amounts of all to-flow legs.
func (e *JournalEntry) ToTotal() decimal.Decimal {
	return e.flowTotal(FlowTo)
}

func (e *JournalEntry) flowTotal(f FlowDirection) decimal.Decimal {
	total := decimal.Zero
	for _, d := range e.Distributions {
		if d.Flow == f {
			total = total.Add(d.Amount)
		}
	}
	return total
}

// IsBalanced reports whether the from-total equals the to-total. Exact
// decimal comparison; amounts are fixed-point so there is no drift.
func (e *JournalEntry) IsBalanced() bool {
	return e.FromTotal().Equal(e.ToTotal())
}

// Validate checks the entry's structural rules: at least two legs, every
// leg valid, and the two flow totals equal. It does not check references
// against the chart of accounts — that is the posting path's job.
func (e *JournalEntry) Validate() error {
	if len(e.Distributions) < 2 {
		return ErrEmptyEntry
	}
	for _, d := range e.Distributions {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	if !e.IsBalanced() {
		return ErrEntryNotBalanced
	}
	return nil
}
