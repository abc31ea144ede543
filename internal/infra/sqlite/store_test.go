package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAccountRoundTrip(t *testing.T) {
	db := newTestDB(t)

	envID := uuid.New()
	a := domain.Account{
		ID:               uuid.New(),
		Name:             "Checking",
		Type:             domain.AccountAsset,
		Balance:          dec("1234.56"),
		BudgetEnvelopeID: &envID,
	}
	if err := db.SaveAccount(a); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.Account(a.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != a.Name || got.Type != a.Type {
		t.Errorf("got %q/%q, want %q/%q", got.Name, got.Type, a.Name, a.Type)
	}
	if !got.Balance.Equal(a.Balance) {
		t.Errorf("balance = %s, want %s", got.Balance, a.Balance)
	}
	if got.BudgetEnvelopeID == nil || *got.BudgetEnvelopeID != envID {
		t.Errorf("budget envelope id not preserved: %v", got.BudgetEnvelopeID)
	}
	if got.PaymentEnvelopeID != nil {
		t.Errorf("payment envelope id = %v, want nil", got.PaymentEnvelopeID)
	}

	// Upsert overwrites in place.
	a.Balance = dec("42.00")
	if err := db.SaveAccount(a); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = db.Account(a.ID)
	if !got.Balance.Equal(dec("42.00")) {
		t.Errorf("balance after upsert = %s, want 42.00", got.Balance)
	}
}

func TestAccountNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.Account(uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
	if _, err := db.BudgetEnvelope(uuid.New()); !errors.Is(err, domain.ErrBudgetEnvelopeNotFound) {
		t.Errorf("err = %v, want ErrBudgetEnvelopeNotFound", err)
	}
	if _, err := db.PaymentEnvelope(uuid.New()); !errors.Is(err, domain.ErrPaymentEnvelopeNotFound) {
		t.Errorf("err = %v, want ErrPaymentEnvelopeNotFound", err)
	}
	if _, err := db.JournalEntry(uuid.New()); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("err = %v, want ErrEntryNotFound", err)
	}
}

func TestBudgetEnvelopeRoundTrip(t *testing.T) {
	db := newTestDB(t)

	e := domain.BudgetEnvelope{
		ID:                  uuid.New(),
		Name:                "Groceries",
		FundingAccountID:    uuid.New(),
		MonthlyAllocation:   dec("300"),
		Rollover:            domain.RolloverCap,
		CapMax:              dec("500"),
		Balance:             dec("154.20"),
		AllocatedThisPeriod: dec("300"),
		SpentThisPeriod:     dec("145.80"),
		LastAllocatedPeriod: "2026-08",
		Active:              true,
	}
	if err := db.SaveBudgetEnvelope(e); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.BudgetEnvelope(e.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Rollover != domain.RolloverCap || !got.CapMax.Equal(dec("500")) {
		t.Errorf("rollover = %s cap %s, want cap/500", got.Rollover, got.CapMax)
	}
	if got.LastAllocatedPeriod != "2026-08" {
		t.Errorf("period = %q, want 2026-08", got.LastAllocatedPeriod)
	}
	if !got.Active {
		t.Error("active flag lost")
	}
}

func TestJournalEntryRoundTrip(t *testing.T) {
	db := newTestDB(t)

	entry := domain.NewJournalEntry(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "groceries")
	envID := uuid.New()
	must(t, entry.AddDistribution(domain.Distribution{
		AccountID:   uuid.New(),
		AccountType: domain.AccountAsset,
		Flow:        domain.FlowFrom,
		Amount:      dec("125.50"),
	}))
	must(t, entry.AddDistribution(domain.Distribution{
		AccountID:        uuid.New(),
		AccountType:      domain.AccountExpense,
		Flow:             domain.FlowTo,
		Amount:           dec("125.50"),
		BudgetEnvelopeID: &envID,
	}))
	if err := db.SaveJournalEntry(*entry); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.JournalEntry(entry.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.StatusDraft {
		t.Errorf("status = %s, want draft", got.Status)
	}
	if !got.Date.Equal(entry.Date) {
		t.Errorf("date = %v, want %v", got.Date, entry.Date)
	}
	if len(got.Distributions) != 2 {
		t.Fatalf("got %d distributions, want 2", len(got.Distributions))
	}
	// Position order preserved.
	if got.Distributions[0].Flow != domain.FlowFrom || got.Distributions[1].Flow != domain.FlowTo {
		t.Error("distribution order not preserved")
	}
	if got.Distributions[1].BudgetEnvelopeID == nil || *got.Distributions[1].BudgetEnvelopeID != envID {
		t.Error("distribution envelope override lost")
	}

	// Resave replaces the distribution rows rather than duplicating.
	if err := db.SaveJournalEntry(*entry); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, _ = db.JournalEntry(entry.ID)
	if len(got.Distributions) != 2 {
		t.Errorf("got %d distributions after resave, want 2", len(got.Distributions))
	}
}

func TestRecurringTemplateRoundTrip(t *testing.T) {
	db := newTestDB(t)

	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	tmpl := domain.RecurringJournalEntry{
		ID:         uuid.New(),
		Name:       "Rent",
		Frequency:  domain.FreqMonthly,
		Interval:   1,
		DayOfMonth: 31,
		StartDate:  time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		EndDate:    &end,
		AutoPost:   true,
		Active:     true,
		Distributions: []domain.Distribution{
			{ID: uuid.New(), AccountID: uuid.New(), AccountType: domain.AccountAsset, Flow: domain.FlowFrom, Amount: dec("1200")},
			{ID: uuid.New(), AccountID: uuid.New(), AccountType: domain.AccountExpense, Flow: domain.FlowTo, Amount: dec("1200")},
		},
	}
	if err := db.SaveRecurringTemplate(tmpl); err != nil {
		t.Fatalf("save: %v", err)
	}

	all, err := db.RecurringTemplates()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d templates, want 1", len(all))
	}
	got := all[0]
	if got.DayOfMonth != 31 || !got.AutoPost || got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("schedule fields lost: %+v", got)
	}
	if len(got.Distributions) != 2 {
		t.Fatalf("got %d template distributions, want 2", len(got.Distributions))
	}
}

func TestApplyPostingAtomic(t *testing.T) {
	db := newTestDB(t)

	acct := domain.Account{ID: uuid.New(), Name: "Checking", Type: domain.AccountAsset, Balance: dec("874.50")}
	env := domain.BudgetEnvelope{
		ID: uuid.New(), Name: "Groceries", FundingAccountID: acct.ID,
		MonthlyAllocation: dec("300"), Rollover: domain.RolloverAccumulate,
		CapMax: decimal.Zero, Balance: dec("674.50"),
		AllocatedThisPeriod: dec("300"), SpentThisPeriod: dec("125.50"),
		LastAllocatedPeriod: "2026-08", Active: true,
	}
	entry := domain.NewJournalEntry(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC), "groceries")
	must(t, entry.AddDistribution(domain.Distribution{AccountID: acct.ID, AccountType: domain.AccountAsset, Flow: domain.FlowFrom, Amount: dec("125.50")}))
	must(t, entry.AddDistribution(domain.Distribution{AccountID: uuid.New(), AccountType: domain.AccountExpense, Flow: domain.FlowTo, Amount: dec("125.50")}))
	entry.Status = domain.StatusPosted
	now := time.Now().UTC()
	entry.PostedAt = &now

	txn := domain.EnvelopeTransaction{
		ID: uuid.New(), EnvelopeID: env.ID, Type: domain.TxnExpense,
		Amount: dec("-125.50"), BalanceAfter: dec("674.50"),
		Date: entry.Date, JournalEntryID: &entry.ID,
	}

	err := db.ApplyPosting(domain.PostingBatch{
		Entry:           *entry,
		Accounts:        []domain.Account{acct},
		BudgetEnvelopes: []domain.BudgetEnvelope{env},
		EnvelopeTxns:    []domain.EnvelopeTransaction{txn},
	})
	if err != nil {
		t.Fatalf("apply posting: %v", err)
	}

	gotAcct, _ := db.Account(acct.ID)
	if !gotAcct.Balance.Equal(dec("874.50")) {
		t.Errorf("account balance = %s, want 874.50", gotAcct.Balance)
	}
	gotEntry, _ := db.JournalEntry(entry.ID)
	if gotEntry.Status != domain.StatusPosted || gotEntry.PostedAt == nil {
		t.Errorf("entry not recorded as posted: %+v", gotEntry)
	}
	txns, err := db.EnvelopeTransactions(env.ID)
	if err != nil {
		t.Fatalf("load txns: %v", err)
	}
	if len(txns) != 1 || txns[0].Type != domain.TxnExpense {
		t.Fatalf("txn trail = %+v, want one expense row", txns)
	}
	if txns[0].JournalEntryID == nil || *txns[0].JournalEntryID != entry.ID {
		t.Error("txn not linked back to the entry")
	}
}

func TestApplyPostingDuplicateTxnRollsBack(t *testing.T) {
	db := newTestDB(t)

	acct := domain.Account{ID: uuid.New(), Name: "Checking", Type: domain.AccountAsset, Balance: dec("1000")}
	if err := db.SaveAccount(acct); err != nil {
		t.Fatalf("seed: %v", err)
	}

	env := domain.BudgetEnvelope{
		ID: uuid.New(), Name: "Dining", FundingAccountID: acct.ID,
		MonthlyAllocation: dec("100"), Rollover: domain.RolloverReset,
		CapMax: decimal.Zero, Balance: dec("100"),
		AllocatedThisPeriod: dec("100"), SpentThisPeriod: decimal.Zero,
		Active: true,
	}
	txn := domain.EnvelopeTransaction{
		ID: uuid.New(), EnvelopeID: env.ID, Type: domain.TxnAllocation,
		Amount: dec("100"), BalanceAfter: dec("100"), Date: time.Now(),
	}
	// Pre-insert the txn id so the batch violates the UNIQUE constraint.
	ok := db.ApplyAllocation(domain.AllocationBatch{EnvelopeTxns: []domain.EnvelopeTransaction{txn}})
	if ok != nil {
		t.Fatalf("seed txn: %v", ok)
	}

	entry := domain.NewJournalEntry(time.Now(), "dup")
	must(t, entry.AddDistribution(domain.Distribution{AccountID: acct.ID, AccountType: domain.AccountAsset, Flow: domain.FlowFrom, Amount: dec("10")}))
	must(t, entry.AddDistribution(domain.Distribution{AccountID: uuid.New(), AccountType: domain.AccountExpense, Flow: domain.FlowTo, Amount: dec("10")}))

	acct.Balance = dec("990")
	err := db.ApplyPosting(domain.PostingBatch{
		Entry:           *entry,
		Accounts:        []domain.Account{acct},
		BudgetEnvelopes: []domain.BudgetEnvelope{env},
		EnvelopeTxns:    []domain.EnvelopeTransaction{txn},
	})
	if err == nil {
		t.Fatal("expected constraint error, got nil")
	}

	// Nothing from the failed batch may stick.
	gotAcct, _ := db.Account(acct.ID)
	if !gotAcct.Balance.Equal(dec("1000")) {
		t.Errorf("account balance = %s after rollback, want 1000", gotAcct.Balance)
	}
	if _, err := db.JournalEntry(entry.ID); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("entry survived rollback: %v", err)
	}
	if _, err := db.BudgetEnvelope(env.ID); !errors.Is(err, domain.ErrBudgetEnvelopeNotFound) {
		t.Errorf("envelope survived rollback: %v", err)
	}
}

func TestApplyAllocationAndQuery(t *testing.T) {
	db := newTestDB(t)

	srcID := uuid.New()
	env := domain.BudgetEnvelope{
		ID: uuid.New(), Name: "Utilities", FundingAccountID: srcID,
		MonthlyAllocation: dec("150"), Rollover: domain.RolloverAccumulate,
		CapMax: decimal.Zero, Balance: dec("150"),
		AllocatedThisPeriod: dec("150"), SpentThisPeriod: decimal.Zero,
		LastAllocatedPeriod: "2026-08", Active: true,
	}
	alloc := domain.BudgetAllocation{
		ID: uuid.New(), SourceAccountID: srcID, EnvelopeID: env.ID,
		Requested: dec("150"), Applied: dec("150"),
		Period: "2026-08", Date: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	txn := domain.EnvelopeTransaction{
		ID: uuid.New(), EnvelopeID: env.ID, Type: domain.TxnAllocation,
		Amount: dec("150"), BalanceAfter: dec("150"),
		Date: alloc.Date, AllocationID: &alloc.ID,
	}

	err := db.ApplyAllocation(domain.AllocationBatch{
		Envelopes:    []domain.BudgetEnvelope{env},
		Allocations:  []domain.BudgetAllocation{alloc},
		EnvelopeTxns: []domain.EnvelopeTransaction{txn},
	})
	if err != nil {
		t.Fatalf("apply allocation: %v", err)
	}

	forAug, err := db.Allocations("2026-08")
	if err != nil {
		t.Fatalf("query allocations: %v", err)
	}
	if len(forAug) != 1 || !forAug[0].Applied.Equal(dec("150")) {
		t.Fatalf("allocations for 2026-08 = %+v, want one applied 150", forAug)
	}
	forSep, err := db.Allocations("2026-09")
	if err != nil {
		t.Fatalf("query allocations: %v", err)
	}
	if len(forSep) != 0 {
		t.Errorf("allocations for 2026-09 = %d rows, want 0", len(forSep))
	}
	all, err := db.Allocations("")
	if err != nil {
		t.Fatalf("query all allocations: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("all allocations = %d rows, want 1", len(all))
	}
}

func TestEnvelopeTransactionsOrderedBySeq(t *testing.T) {
	db := newTestDB(t)

	envID := uuid.New()
	types := []domain.EnvelopeTxnType{domain.TxnAllocation, domain.TxnExpense, domain.TxnRefund}
	for _, tt := range types {
		err := db.ApplyAllocation(domain.AllocationBatch{EnvelopeTxns: []domain.EnvelopeTransaction{{
			ID: uuid.New(), EnvelopeID: envID, Type: tt,
			Amount: dec("1"), BalanceAfter: dec("1"), Date: time.Now(),
		}}})
		if err != nil {
			t.Fatalf("insert %s: %v", tt, err)
		}
	}

	txns, err := db.EnvelopeTransactions(envID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("got %d txns, want 3", len(txns))
	}
	for i, tt := range types {
		if txns[i].Type != tt {
			t.Errorf("txns[%d].Type = %s, want %s", i, txns[i].Type, tt)
		}
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
