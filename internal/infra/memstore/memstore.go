// Package memstore is the map-backed domain.Store: the default store
// for tests and the CLI's ephemeral mode. Reads hand out copies, so
// callers always see a consistent snapshot; batches apply under one
// lock, so a posting is all-or-nothing.
package memstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// Store holds the whole ledger in process memory.
type Store struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]domain.Account
	budgets      map[uuid.UUID]domain.BudgetEnvelope
	payments     map[uuid.UUID]domain.PaymentEnvelope
	entries      map[uuid.UUID]domain.JournalEntry
	templates    map[uuid.UUID]domain.RecurringJournalEntry
	envelopeTxns map[uuid.UUID][]domain.EnvelopeTransaction
	allocations  []domain.BudgetAllocation
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]domain.Account),
		budgets:      make(map[uuid.UUID]domain.BudgetEnvelope),
		payments:     make(map[uuid.UUID]domain.PaymentEnvelope),
		entries:      make(map[uuid.UUID]domain.JournalEntry),
		templates:    make(map[uuid.UUID]domain.RecurringJournalEntry),
		envelopeTxns: make(map[uuid.UUID][]domain.EnvelopeTransaction),
	}
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func (s *Store) Account(id uuid.UUID) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (s *Store) Accounts() ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SaveAccount(a domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	return nil
}

// ─── Envelopes ──────────────────────────────────────────────────────────────

func (s *Store) BudgetEnvelope(id uuid.UUID) (domain.BudgetEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.budgets[id]
	if !ok {
		return domain.BudgetEnvelope{}, domain.ErrBudgetEnvelopeNotFound
	}
	return e, nil
}

func (s *Store) BudgetEnvelopes() ([]domain.BudgetEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.BudgetEnvelope, 0, len(s.budgets))
	for _, e := range s.budgets {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SaveBudgetEnvelope(e domain.BudgetEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[e.ID] = e
	return nil
}

func (s *Store) PaymentEnvelope(id uuid.UUID) (domain.PaymentEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.payments[id]
	if !ok {
		return domain.PaymentEnvelope{}, domain.ErrPaymentEnvelopeNotFound
	}
	return e, nil
}

func (s *Store) PaymentEnvelopes() ([]domain.PaymentEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PaymentEnvelope, 0, len(s.payments))
	for _, e := range s.payments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SavePaymentEnvelope(e domain.PaymentEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[e.ID] = e
	return nil
}

// ─── Journal ────────────────────────────────────────────────────────────────

func (s *Store) JournalEntry(id uuid.UUID) (domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.JournalEntry{}, domain.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (s *Store) JournalEntries() ([]domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.JournalEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) SaveJournalEntry(e domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = copyEntry(e)
	return nil
}

func copyEntry(e domain.JournalEntry) domain.JournalEntry {
	dists := make([]domain.Distribution, len(e.Distributions))
	copy(dists, e.Distributions)
	e.Distributions = dists
	return e
}

// ─── Recurring Templates ────────────────────────────────────────────────────

func (s *Store) RecurringTemplates() ([]domain.RecurringJournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RecurringJournalEntry, 0, len(s.templates))
	for _, t := range s.templates {
		dists := make([]domain.Distribution, len(t.Distributions))
		copy(dists, t.Distributions)
		t.Distributions = dists
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SaveRecurringTemplate(t domain.RecurringJournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t
	return nil
}

// ─── Audit Trail ────────────────────────────────────────────────────────────

func (s *Store) EnvelopeTransactions(envelopeID uuid.UUID) ([]domain.EnvelopeTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txns := s.envelopeTxns[envelopeID]
	out := make([]domain.EnvelopeTransaction, len(txns))
	copy(out, txns)
	return out, nil
}

func (s *Store) Allocations(period string) ([]domain.BudgetAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BudgetAllocation
	for _, a := range s.allocations {
		if period == "" || a.Period == period {
			out = append(out, a)
		}
	}
	return out, nil
}

// ─── Atomic Batches ─────────────────────────────────────────────────────────

func (s *Store) ApplyPosting(b domain.PostingBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range b.Accounts {
		s.accounts[a.ID] = a
	}
	for _, e := range b.BudgetEnvelopes {
		s.budgets[e.ID] = e
	}
	for _, e := range b.PaymentEnvelopes {
		s.payments[e.ID] = e
	}
	for _, t := range b.EnvelopeTxns {
		s.envelopeTxns[t.EnvelopeID] = append(s.envelopeTxns[t.EnvelopeID], t)
	}
	s.entries[b.Entry.ID] = copyEntry(b.Entry)
	return nil
}

func (s *Store) ApplyAllocation(b domain.AllocationBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range b.Envelopes {
		s.budgets[e.ID] = e
	}
	s.allocations = append(s.allocations, b.Allocations...)
	for _, t := range b.EnvelopeTxns {
		s.envelopeTxns[t.EnvelopeID] = append(s.envelopeTxns[t.EnvelopeID], t)
	}
	return nil
}
