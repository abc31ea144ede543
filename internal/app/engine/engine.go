// Package engine implements the envelope accounting service: posting
// journal entries into real and virtual balances, monthly allocation
// runs, advisory validation, and the bank account view behind the
// fundamental equation.
//
// The engine is a single-writer, synchronous component. Every mutating
// operation:
//  1. Validates the request against a snapshot of the store
//  2. Computes the full effect on copies (accounts, envelopes, audit rows)
//  3. Hands the store one atomic batch — all of it lands or none does
//
// Concurrent posts serialize on the service mutex; envelope balances are
// hot shared state and every update is read-modify-write inside it.
// Readers (the account view and the validators) take the read side of
// the same mutex, so a view never spans a half-applied posting.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// Metrics receives engine events. Nil-safe: the engine works without one.
type Metrics interface {
	EntryPosted()
	AllocationRun(envelopes int)
	EnvelopeTxn(txnType domain.EnvelopeTxnType)
	EquationCheckFailed()
}

// Service is the envelope accounting engine.
type Service struct {
	mu      sync.RWMutex
	store   domain.Store
	metrics Metrics
	now     func() time.Time
}

// New creates an engine backed by the given store.
func New(store domain.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetMetrics attaches a metrics sink.
func (s *Service) SetMetrics(m Metrics) { s.metrics = m }

// SetClock overrides the engine's clock. Tests use this to pin "today".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Posting ────────────────────────────────────────────────────────────────

// PostEntry posts a draft entry: applies every distribution's balance
// impact to its real account, applies envelope effects, appends the
// audit rows, and transitions the entry to posted — atomically.
// Re-posting an already posted entry is rejected, never double-applied.
// Overspending an envelope is not blocked here; ValidateExpense is the
// advisory gate and negative envelope balances are representable.
func (s *Service) PostEntry(entry *domain.JournalEntry) ([]domain.EnvelopeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postLocked(entry)
}

func (s *Service) postLocked(entry *domain.JournalEntry) ([]domain.EnvelopeTransaction, error) {
	if entry.Status != domain.StatusDraft {
		return nil, domain.ErrEntryNotDraft
	}
	if existing, err := s.store.JournalEntry(entry.ID); err == nil && existing.Status != domain.StatusDraft {
		return nil, domain.ErrEntryNotDraft
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	// Resolve every referenced account up front: a missing reference
	// fails the whole post before anything is touched.
	accounts := make(map[uuid.UUID]domain.Account)
	for _, d := range entry.Distributions {
		if _, ok := accounts[d.AccountID]; ok {
			continue
		}
		a, err := s.store.Account(d.AccountID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, d.AccountID)
		}
		accounts[d.AccountID] = a
	}

	budgets := make(map[uuid.UUID]domain.BudgetEnvelope)
	payments := make(map[uuid.UUID]domain.PaymentEnvelope)
	for _, d := range entry.Distributions {
		acct := accounts[d.AccountID]
		if id := domain.ResolveBudgetEnvelope(d, acct); id != nil {
			if _, ok := budgets[*id]; !ok {
				env, err := s.store.BudgetEnvelope(*id)
				if err != nil {
					return nil, fmt.Errorf("%w: %s", domain.ErrBudgetEnvelopeNotFound, *id)
				}
				budgets[*id] = env
			}
		}
		if id := domain.ResolvePaymentEnvelope(d, acct); id != nil && d.AccountType == domain.AccountLiability {
			if _, ok := payments[*id]; !ok {
				env, err := s.store.PaymentEnvelope(*id)
				if err != nil {
					return nil, fmt.Errorf("%w: %s", domain.ErrPaymentEnvelopeNotFound, *id)
				}
				payments[*id] = env
			}
		}
	}

	merchantReversal := s.hasBudgetRefundLeg(entry, accounts)

	// All mutations happen on copies; nothing in the store changes until
	// the batch applies.
	var txns []domain.EnvelopeTransaction
	for _, d := range entry.Distributions {
		acct := accounts[d.AccountID]
		resolvedBudget := domain.ResolveBudgetEnvelope(d, acct)
		resolvedPayment := domain.ResolvePaymentEnvelope(d, acct)

		acct.Balance = acct.Balance.Add(d.BalanceImpact())
		accounts[d.AccountID] = acct

		if resolvedBudget != nil {
			env := budgets[*resolvedBudget]
			delta := d.BalanceImpact().Neg()
			env.Balance = env.Balance.Add(delta)
			env.SpentThisPeriod = env.SpentThisPeriod.Sub(delta)
			budgets[*resolvedBudget] = env

			txnType := domain.TxnExpense
			if delta.IsPositive() {
				txnType = domain.TxnRefund
			}
			txns = append(txns, s.envelopeTxn(env.ID, txnType, delta, env.Balance, entry, d))
		}

		if resolvedPayment != nil && d.AccountType == domain.AccountLiability {
			env := payments[*resolvedPayment]
			delta := d.Amount
			txnType := domain.TxnCharge
			if d.Flow == domain.FlowTo {
				// Liability going down: money left the reserve. A
				// paydown is a payment; a merchant reversal rides along
				// with a budget refund in the same entry.
				delta = d.Amount.Neg()
				txnType = domain.TxnPayment
				if merchantReversal {
					txnType = domain.TxnCredit
				}
			}
			env.Balance = env.Balance.Add(delta)
			payments[*resolvedPayment] = env

			txns = append(txns, s.envelopeTxn(env.ID, txnType, delta, env.Balance, entry, d))
		}
	}

	postedAt := s.now()
	entry.Status = domain.StatusPosted
	entry.PostedAt = &postedAt

	batch := domain.PostingBatch{Entry: *entry, EnvelopeTxns: txns}
	for _, a := range accounts {
		batch.Accounts = append(batch.Accounts, a)
	}
	for _, e := range budgets {
		batch.BudgetEnvelopes = append(batch.BudgetEnvelopes, e)
	}
	for _, e := range payments {
		batch.PaymentEnvelopes = append(batch.PaymentEnvelopes, e)
	}

	if err := s.store.ApplyPosting(batch); err != nil {
		// Store rejected the batch; the entry stays a draft.
		entry.Status = domain.StatusDraft
		entry.PostedAt = nil
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.EntryPosted()
		for _, t := range txns {
			s.metrics.EnvelopeTxn(t.Type)
		}
	}
	return txns, nil
}

// hasBudgetRefundLeg reports whether any leg of the entry increases a
// budget envelope — the signature of a merchant reversal.
func (s *Service) hasBudgetRefundLeg(entry *domain.JournalEntry, accounts map[uuid.UUID]domain.Account) bool {
	for _, d := range entry.Distributions {
		if domain.ResolveBudgetEnvelope(d, accounts[d.AccountID]) != nil && d.BalanceImpact().IsNegative() {
			return true
		}
	}
	return false
}

func (s *Service) envelopeTxn(envID uuid.UUID, t domain.EnvelopeTxnType, delta, after decimal.Decimal, entry *domain.JournalEntry, d domain.Distribution) domain.EnvelopeTransaction {
	distID := d.ID
	return domain.EnvelopeTransaction{
		ID:             uuid.New(),
		EnvelopeID:     envID,
		Type:           t,
		Amount:         delta,
		BalanceAfter:   after,
		Date:           entry.Date,
		JournalEntryID: &entry.ID,
		DistributionID: &distID,
	}
}

// ─── Void and Reversal ──────────────────────────────────────────────────────

// VoidEntry flags a posted entry as void. It deliberately does NOT
// reverse any account or envelope effect — ReverseEntry is the distinct
// operation for that.
func (s *Service) VoidEntry(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.store.JournalEntry(id)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	if entry.Status != domain.StatusPosted {
		return domain.ErrEntryNotPosted
	}
	entry.Status = domain.StatusVoid
	return s.store.SaveJournalEntry(entry)
}

// ReverseEntry builds a mirrored draft of a posted entry (every flow
// direction swapped, same amounts and envelope routing) dated d, and
// posts it through the normal path so the reversal shows up in the same
// audit trail as everything else.
func (s *Service) ReverseEntry(id uuid.UUID, d time.Time) (*domain.JournalEntry, []domain.EnvelopeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, err := s.store.JournalEntry(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	if orig.Status != domain.StatusPosted {
		return nil, nil, domain.ErrEntryNotPosted
	}

	rev := domain.NewJournalEntry(d, "reversal of "+orig.ID.String())
	for _, od := range orig.Distributions {
		flipped := od
		flipped.ID = uuid.New()
		if od.Flow == domain.FlowFrom {
			flipped.Flow = domain.FlowTo
		} else {
			flipped.Flow = domain.FlowFrom
		}
		if err := rev.AddDistribution(flipped); err != nil {
			return nil, nil, err
		}
	}

	txns, err := s.postLocked(rev)
	if err != nil {
		return nil, nil, err
	}
	return rev, txns, nil
}

// ─── Monthly Allocation ─────────────────────────────────────────────────────

// ApplyMonthlyAllocations runs one allocation over every active budget
// envelope funded by the source account, per each envelope's rollover
// policy. Virtual state only: no real account balance moves. Each
// envelope update emits one BudgetAllocation and one "allocation"
// EnvelopeTransaction.
func (s *Service) ApplyMonthlyAllocations(sourceAccountID uuid.UUID, date time.Time, period string) ([]domain.BudgetAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Account(sourceAccountID); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, sourceAccountID)
	}
	envs, err := s.store.BudgetEnvelopes()
	if err != nil {
		return nil, err
	}

	var batch domain.AllocationBatch
	for _, env := range envs {
		if !env.Active || env.FundingAccountID != sourceAccountID {
			continue
		}

		old := env.Balance
		env.Balance = domain.ApplyRollover(env.Rollover, env.CapMax, old, env.MonthlyAllocation)
		applied := env.Balance.Sub(old)
		env.AllocatedThisPeriod = env.MonthlyAllocation
		env.SpentThisPeriod = decimal.Zero
		env.LastAllocatedPeriod = period

		alloc := domain.BudgetAllocation{
			ID:              uuid.New(),
			SourceAccountID: sourceAccountID,
			EnvelopeID:      env.ID,
			Requested:       env.MonthlyAllocation,
			Applied:         applied,
			Period:          period,
			Date:            date,
		}
		allocID := alloc.ID
		txn := domain.EnvelopeTransaction{
			ID:           uuid.New(),
			EnvelopeID:   env.ID,
			Type:         domain.TxnAllocation,
			Amount:       applied,
			BalanceAfter: env.Balance,
			Date:         date,
			AllocationID: &allocID,
		}

		batch.Envelopes = append(batch.Envelopes, env)
		batch.Allocations = append(batch.Allocations, alloc)
		batch.EnvelopeTxns = append(batch.EnvelopeTxns, txn)
	}

	if len(batch.Allocations) == 0 {
		return nil, nil
	}
	if err := s.store.ApplyAllocation(batch); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.AllocationRun(len(batch.Allocations))
		for range batch.EnvelopeTxns {
			s.metrics.EnvelopeTxn(domain.TxnAllocation)
		}
	}
	return batch.Allocations, nil
}

// ─── Advisory Validation ────────────────────────────────────────────────────

// ValidateAllocation checks whether an allocation fits the account's
// available-to-allocate. Advisory and non-throwing: the result carries
// the shortfall message, and the caller decides what to do with it.
func (s *Service) ValidateAllocation(bankAccountID uuid.UUID, amount decimal.Decimal) (domain.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, err := s.accountViewLocked(bankAccountID, s.now())
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if amount.GreaterThan(view.AvailableToAllocate) {
		short := amount.Sub(view.AvailableToAllocate)
		return domain.ValidationResult{
			Valid: false,
			Warning: fmt.Sprintf("allocating %s exceeds available %s by %s",
				amount.StringFixed(2), view.AvailableToAllocate.StringFixed(2), short.StringFixed(2)),
		}, nil
	}
	return domain.ValidationResult{Valid: true}, nil
}

// ValidateExpense checks an expense against an envelope's balance.
// Advisory only — posting never enforces this, so callers gate on it
// before posting if they want hard budget limits.
func (s *Service) ValidateExpense(envelopeID uuid.UUID, amount decimal.Decimal, allowOverspend bool) (domain.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, err := s.store.BudgetEnvelope(envelopeID)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("%w: %s", domain.ErrBudgetEnvelopeNotFound, envelopeID)
	}
	if amount.GreaterThan(env.Balance) {
		over := amount.Sub(env.Balance)
		warning := fmt.Sprintf("spending %s overspends envelope %q by %s",
			amount.StringFixed(2), env.Name, over.StringFixed(2))
		return domain.ValidationResult{Valid: allowOverspend, Warning: warning}, nil
	}
	return domain.ValidationResult{Valid: true}, nil
}

// ─── Bank Account View ──────────────────────────────────────────────────────

// AccountView aggregates every envelope funded by the account into the
// fundamental-equation projection. Pure read; never persisted. Holds
// the read lock across all three store reads so the view is a
// consistent snapshot relative to any in-flight posting.
func (s *Service) AccountView(accountID uuid.UUID, asOf time.Time) (domain.BankAccountView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountViewLocked(accountID, asOf)
}

func (s *Service) accountViewLocked(accountID uuid.UUID, asOf time.Time) (domain.BankAccountView, error) {
	acct, err := s.store.Account(accountID)
	if err != nil {
		return domain.BankAccountView{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}

	budgetTotal, paymentTotal, err := s.envelopeTotals(accountID)
	if err != nil {
		return domain.BankAccountView{}, err
	}

	return domain.BankAccountView{
		AccountID:           accountID,
		AsOf:                asOf,
		BankBalance:         acct.Balance,
		BudgetAllocated:     budgetTotal,
		PaymentReserved:     paymentTotal,
		AvailableToAllocate: acct.Balance.Sub(budgetTotal).Sub(paymentTotal),
	}, nil
}

func (s *Service) envelopeTotals(accountID uuid.UUID) (budget, payment decimal.Decimal, err error) {
	budget, payment = decimal.Zero, decimal.Zero

	benvs, err := s.store.BudgetEnvelopes()
	if err != nil {
		return budget, payment, err
	}
	for _, e := range benvs {
		if e.FundingAccountID == accountID {
			budget = budget.Add(e.Balance)
		}
	}

	penvs, err := s.store.PaymentEnvelopes()
	if err != nil {
		return budget, payment, err
	}
	for _, e := range penvs {
		if e.FundingAccountID == accountID {
			payment = payment.Add(e.Balance)
		}
	}
	return budget, payment, nil
}

// ValidateEquation re-derives every funded envelope's balance from its
// append-only transaction trail and compares against the stored
// balances. The two totals must agree to a cent at all times; a nonzero
// difference means a posting bug, not user error.
func (s *Service) ValidateEquation(accountID uuid.UUID, asOf time.Time) (domain.EquationCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, err := s.accountViewLocked(accountID, asOf)
	if err != nil {
		return domain.EquationCheck{}, err
	}

	stored := view.BudgetAllocated.Add(view.PaymentReserved)
	derived := decimal.Zero

	benvs, err := s.store.BudgetEnvelopes()
	if err != nil {
		return domain.EquationCheck{}, err
	}
	for _, e := range benvs {
		if e.FundingAccountID != accountID {
			continue
		}
		d, err := s.deriveBalance(e.ID)
		if err != nil {
			return domain.EquationCheck{}, err
		}
		derived = derived.Add(d)
	}

	penvs, err := s.store.PaymentEnvelopes()
	if err != nil {
		return domain.EquationCheck{}, err
	}
	for _, e := range penvs {
		if e.FundingAccountID != accountID {
			continue
		}
		d, err := s.deriveBalance(e.ID)
		if err != nil {
			return domain.EquationCheck{}, err
		}
		derived = derived.Add(d)
	}

	check := domain.EquationCheck{
		View:         view,
		StoredTotal:  stored,
		DerivedTotal: derived,
		Difference:   stored.Sub(derived),
	}
	if !check.Balanced() && s.metrics != nil {
		s.metrics.EquationCheckFailed()
	}
	return check, nil
}

// deriveBalance replays an envelope's audit trail. Reset allocations
// break pure summation (the old balance is discarded, not offset by a
// transaction), so the trail records the applied delta and summation
// still reconciles.
func (s *Service) deriveBalance(envelopeID uuid.UUID) (decimal.Decimal, error) {
	txns, err := s.store.EnvelopeTransactions(envelopeID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total, nil
}
