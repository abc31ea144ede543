package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// DB implements domain.Store.

const dateFormat = time.DateOnly

// ─── Value Helpers ──────────────────────────────────────────────────────────

func nullID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func scanID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDec(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ─── Accounts ───────────────────────────────────────────────────────────────

func (d *DB) Account(id uuid.UUID) (domain.Account, error) {
	row := d.db.QueryRow(`
		SELECT id, name, type, balance, budget_envelope_id, payment_envelope_id
		FROM accounts WHERE id = ?
	`, id.String())
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, err
}

func (d *DB) Accounts() ([]domain.Account, error) {
	rows, err := d.db.Query(`
		SELECT id, name, type, balance, budget_envelope_id, payment_envelope_id
		FROM accounts ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account
	var idStr, balanceStr string
	var budgetID, paymentID sql.NullString
	if err := s.Scan(&idStr, &a.Name, &a.Type, &balanceStr, &budgetID, &paymentID); err != nil {
		return domain.Account{}, err
	}

	var err error
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return domain.Account{}, err
	}
	if a.Balance, err = parseDec(balanceStr); err != nil {
		return domain.Account{}, err
	}
	if a.BudgetEnvelopeID, err = scanID(budgetID); err != nil {
		return domain.Account{}, err
	}
	if a.PaymentEnvelopeID, err = scanID(paymentID); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (d *DB) SaveAccount(a domain.Account) error {
	return upsertAccount(d.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertAccount(e execer, a domain.Account) error {
	_, err := e.Exec(`
		INSERT INTO accounts (id, name, type, balance, budget_envelope_id, payment_envelope_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name                = excluded.name,
			type                = excluded.type,
			balance             = excluded.balance,
			budget_envelope_id  = excluded.budget_envelope_id,
			payment_envelope_id = excluded.payment_envelope_id
	`, a.ID.String(), a.Name, string(a.Type), a.Balance.String(), nullID(a.BudgetEnvelopeID), nullID(a.PaymentEnvelopeID))
	return err
}

// ─── Budget Envelopes ───────────────────────────────────────────────────────

const budgetEnvelopeCols = `id, name, funding_account_id, monthly_allocation, rollover,
	cap_max, balance, allocated_this_period, spent_this_period, last_allocated_period, active`

func (d *DB) BudgetEnvelope(id uuid.UUID) (domain.BudgetEnvelope, error) {
	row := d.db.QueryRow(`SELECT `+budgetEnvelopeCols+` FROM budget_envelopes WHERE id = ?`, id.String())
	e, err := scanBudgetEnvelope(row)
	if err == sql.ErrNoRows {
		return domain.BudgetEnvelope{}, domain.ErrBudgetEnvelopeNotFound
	}
	return e, err
}

func (d *DB) BudgetEnvelopes() ([]domain.BudgetEnvelope, error) {
	rows, err := d.db.Query(`SELECT ` + budgetEnvelopeCols + ` FROM budget_envelopes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BudgetEnvelope
	for rows.Next() {
		e, err := scanBudgetEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanBudgetEnvelope(s scanner) (domain.BudgetEnvelope, error) {
	var e domain.BudgetEnvelope
	var idStr, fundingStr, monthlyStr, capStr, balanceStr, allocStr, spentStr string
	var activeInt int
	if err := s.Scan(&idStr, &e.Name, &fundingStr, &monthlyStr, &e.Rollover,
		&capStr, &balanceStr, &allocStr, &spentStr, &e.LastAllocatedPeriod, &activeInt); err != nil {
		return domain.BudgetEnvelope{}, err
	}

	var err error
	if e.ID, err = uuid.Parse(idStr); err != nil {
		return domain.BudgetEnvelope{}, err
	}
	if e.FundingAccountID, err = uuid.Parse(fundingStr); err != nil {
		return domain.BudgetEnvelope{}, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&e.MonthlyAllocation, monthlyStr},
		{&e.CapMax, capStr},
		{&e.Balance, balanceStr},
		{&e.AllocatedThisPeriod, allocStr},
		{&e.SpentThisPeriod, spentStr},
	} {
		if *f.dst, err = parseDec(f.src); err != nil {
			return domain.BudgetEnvelope{}, err
		}
	}
	e.Active = activeInt == 1
	return e, nil
}

func (d *DB) SaveBudgetEnvelope(e domain.BudgetEnvelope) error {
	return upsertBudgetEnvelope(d.db, e)
}

func upsertBudgetEnvelope(ex execer, e domain.BudgetEnvelope) error {
	_, err := ex.Exec(`
		INSERT INTO budget_envelopes (`+budgetEnvelopeCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name                  = excluded.name,
			funding_account_id    = excluded.funding_account_id,
			monthly_allocation    = excluded.monthly_allocation,
			rollover              = excluded.rollover,
			cap_max               = excluded.cap_max,
			balance               = excluded.balance,
			allocated_this_period = excluded.allocated_this_period,
			spent_this_period     = excluded.spent_this_period,
			last_allocated_period = excluded.last_allocated_period,
			active                = excluded.active
	`, e.ID.String(), e.Name, e.FundingAccountID.String(), e.MonthlyAllocation.String(), string(e.Rollover),
		e.CapMax.String(), e.Balance.String(), e.AllocatedThisPeriod.String(), e.SpentThisPeriod.String(),
		e.LastAllocatedPeriod, boolInt(e.Active))
	return err
}

// ─── Payment Envelopes ──────────────────────────────────────────────────────

func (d *DB) PaymentEnvelope(id uuid.UUID) (domain.PaymentEnvelope, error) {
	row := d.db.QueryRow(`
		SELECT id, name, funding_account_id, linked_account_id, balance, active
		FROM payment_envelopes WHERE id = ?
	`, id.String())
	e, err := scanPaymentEnvelope(row)
	if err == sql.ErrNoRows {
		return domain.PaymentEnvelope{}, domain.ErrPaymentEnvelopeNotFound
	}
	return e, err
}

func (d *DB) PaymentEnvelopes() ([]domain.PaymentEnvelope, error) {
	rows, err := d.db.Query(`
		SELECT id, name, funding_account_id, linked_account_id, balance, active
		FROM payment_envelopes ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentEnvelope
	for rows.Next() {
		e, err := scanPaymentEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanPaymentEnvelope(s scanner) (domain.PaymentEnvelope, error) {
	var e domain.PaymentEnvelope
	var idStr, fundingStr, linkedStr, balanceStr string
	var activeInt int
	if err := s.Scan(&idStr, &e.Name, &fundingStr, &linkedStr, &balanceStr, &activeInt); err != nil {
		return domain.PaymentEnvelope{}, err
	}

	var err error
	if e.ID, err = uuid.Parse(idStr); err != nil {
		return domain.PaymentEnvelope{}, err
	}
	if e.FundingAccountID, err = uuid.Parse(fundingStr); err != nil {
		return domain.PaymentEnvelope{}, err
	}
	if e.LinkedAccountID, err = uuid.Parse(linkedStr); err != nil {
		return domain.PaymentEnvelope{}, err
	}
	if e.Balance, err = parseDec(balanceStr); err != nil {
		return domain.PaymentEnvelope{}, err
	}
	e.Active = activeInt == 1
	return e, nil
}

func (d *DB) SavePaymentEnvelope(e domain.PaymentEnvelope) error {
	return upsertPaymentEnvelope(d.db, e)
}

func upsertPaymentEnvelope(ex execer, e domain.PaymentEnvelope) error {
	_, err := ex.Exec(`
		INSERT INTO payment_envelopes (id, name, funding_account_id, linked_account_id, balance, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name               = excluded.name,
			funding_account_id = excluded.funding_account_id,
			linked_account_id  = excluded.linked_account_id,
			balance            = excluded.balance,
			active             = excluded.active
	`, e.ID.String(), e.Name, e.FundingAccountID.String(), e.LinkedAccountID.String(), e.Balance.String(), boolInt(e.Active))
	return err
}

// ─── Journal ────────────────────────────────────────────────────────────────

func (d *DB) JournalEntry(id uuid.UUID) (domain.JournalEntry, error) {
	row := d.db.QueryRow(`
		SELECT id, entry_date, memo, status, posted_at
		FROM journal_entries WHERE id = ?
	`, id.String())
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return domain.JournalEntry{}, domain.ErrEntryNotFound
	}
	if err != nil {
		return domain.JournalEntry{}, err
	}
	if e.Distributions, err = d.entryDistributions(e.ID); err != nil {
		return domain.JournalEntry{}, err
	}
	return e, nil
}

func (d *DB) JournalEntries() ([]domain.JournalEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, entry_date, memo, status, posted_at
		FROM journal_entries ORDER BY entry_date, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Distributions, err = d.entryDistributions(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanEntry(s scanner) (domain.JournalEntry, error) {
	var e domain.JournalEntry
	var idStr, dateStr string
	var postedAt sql.NullString
	if err := s.Scan(&idStr, &dateStr, &e.Memo, &e.Status, &postedAt); err != nil {
		return domain.JournalEntry{}, err
	}

	var err error
	if e.ID, err = uuid.Parse(idStr); err != nil {
		return domain.JournalEntry{}, err
	}
	if e.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return domain.JournalEntry{}, err
	}
	if postedAt.Valid {
		t, err := time.Parse(time.RFC3339, postedAt.String)
		if err != nil {
			return domain.JournalEntry{}, err
		}
		e.PostedAt = &t
	}
	return e, nil
}

func (d *DB) entryDistributions(entryID uuid.UUID) ([]domain.Distribution, error) {
	rows, err := d.db.Query(`
		SELECT id, account_id, account_type, flow, amount, budget_envelope_id, payment_envelope_id
		FROM distributions WHERE entry_id = ? ORDER BY position
	`, entryID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Distribution
	for rows.Next() {
		var dd domain.Distribution
		var idStr, acctStr, amountStr string
		var budgetID, paymentID sql.NullString
		if err := rows.Scan(&idStr, &acctStr, &dd.AccountType, &dd.Flow, &amountStr, &budgetID, &paymentID); err != nil {
			return nil, err
		}
		if dd.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if dd.AccountID, err = uuid.Parse(acctStr); err != nil {
			return nil, err
		}
		if dd.Amount, err = parseDec(amountStr); err != nil {
			return nil, err
		}
		if dd.BudgetEnvelopeID, err = scanID(budgetID); err != nil {
			return nil, err
		}
		if dd.PaymentEnvelopeID, err = scanID(paymentID); err != nil {
			return nil, err
		}
		out = append(out, dd)
	}
	return out, rows.Err()
}

func (d *DB) SaveJournalEntry(e domain.JournalEntry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertEntry(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertEntry(tx *sql.Tx, e domain.JournalEntry) error {
	var postedAt any
	if e.PostedAt != nil {
		postedAt = e.PostedAt.Format(time.RFC3339)
	}
	if _, err := tx.Exec(`
		INSERT INTO journal_entries (id, entry_date, memo, status, posted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			entry_date = excluded.entry_date,
			memo       = excluded.memo,
			status     = excluded.status,
			posted_at  = excluded.posted_at
	`, e.ID.String(), e.Date.Format(dateFormat), e.Memo, string(e.Status), postedAt); err != nil {
		return err
	}

	// Replace the distribution rows wholesale; only drafts ever change
	// shape, and they are small.
	if _, err := tx.Exec(`DELETE FROM distributions WHERE entry_id = ?`, e.ID.String()); err != nil {
		return err
	}
	for i, dd := range e.Distributions {
		if _, err := tx.Exec(`
			INSERT INTO distributions (id, entry_id, position, account_id, account_type, flow, amount, budget_envelope_id, payment_envelope_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, dd.ID.String(), e.ID.String(), i, dd.AccountID.String(), string(dd.AccountType), string(dd.Flow),
			dd.Amount.String(), nullID(dd.BudgetEnvelopeID), nullID(dd.PaymentEnvelopeID)); err != nil {
			return err
		}
	}
	return nil
}

// ─── Recurring Templates ────────────────────────────────────────────────────

func (d *DB) RecurringTemplates() ([]domain.RecurringJournalEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, name, frequency, interval, day_of_month, start_date, end_date, end_after_occurrences, auto_post, active
		FROM recurring_templates ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurringJournalEntry
	for rows.Next() {
		var t domain.RecurringJournalEntry
		var idStr, startStr string
		var endStr sql.NullString
		var autoInt, activeInt int
		if err := rows.Scan(&idStr, &t.Name, &t.Frequency, &t.Interval, &t.DayOfMonth,
			&startStr, &endStr, &t.EndAfterOccurrences, &autoInt, &activeInt); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if t.StartDate, err = time.Parse(dateFormat, startStr); err != nil {
			return nil, err
		}
		if endStr.Valid {
			end, err := time.Parse(dateFormat, endStr.String)
			if err != nil {
				return nil, err
			}
			t.EndDate = &end
		}
		t.AutoPost = autoInt == 1
		t.Active = activeInt == 1
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Distributions, err = d.templateDistributions(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *DB) templateDistributions(templateID uuid.UUID) ([]domain.Distribution, error) {
	rows, err := d.db.Query(`
		SELECT id, account_id, account_type, flow, amount, budget_envelope_id, payment_envelope_id
		FROM template_distributions WHERE template_id = ? ORDER BY position
	`, templateID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Distribution
	for rows.Next() {
		var dd domain.Distribution
		var idStr, acctStr, amountStr string
		var budgetID, paymentID sql.NullString
		if err := rows.Scan(&idStr, &acctStr, &dd.AccountType, &dd.Flow, &amountStr, &budgetID, &paymentID); err != nil {
			return nil, err
		}
		if dd.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if dd.AccountID, err = uuid.Parse(acctStr); err != nil {
			return nil, err
		}
		if dd.Amount, err = parseDec(amountStr); err != nil {
			return nil, err
		}
		if dd.BudgetEnvelopeID, err = scanID(budgetID); err != nil {
			return nil, err
		}
		if dd.PaymentEnvelopeID, err = scanID(paymentID); err != nil {
			return nil, err
		}
		out = append(out, dd)
	}
	return out, rows.Err()
}

func (d *DB) SaveRecurringTemplate(t domain.RecurringJournalEntry) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var endDate any
	if t.EndDate != nil {
		endDate = t.EndDate.Format(dateFormat)
	}
	if _, err := tx.Exec(`
		INSERT INTO recurring_templates (id, name, frequency, interval, day_of_month, start_date, end_date, end_after_occurrences, auto_post, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name                  = excluded.name,
			frequency             = excluded.frequency,
			interval              = excluded.interval,
			day_of_month          = excluded.day_of_month,
			start_date            = excluded.start_date,
			end_date              = excluded.end_date,
			end_after_occurrences = excluded.end_after_occurrences,
			auto_post             = excluded.auto_post,
			active                = excluded.active
	`, t.ID.String(), t.Name, string(t.Frequency), t.Interval, t.DayOfMonth,
		t.StartDate.Format(dateFormat), endDate, t.EndAfterOccurrences, boolInt(t.AutoPost), boolInt(t.Active)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM template_distributions WHERE template_id = ?`, t.ID.String()); err != nil {
		return err
	}
	for i, dd := range t.Distributions {
		id := dd.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		if _, err := tx.Exec(`
			INSERT INTO template_distributions (id, template_id, position, account_id, account_type, flow, amount, budget_envelope_id, payment_envelope_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id.String(), t.ID.String(), i, dd.AccountID.String(), string(dd.AccountType), string(dd.Flow),
			dd.Amount.String(), nullID(dd.BudgetEnvelopeID), nullID(dd.PaymentEnvelopeID)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ─── Audit Trail ────────────────────────────────────────────────────────────

func (d *DB) EnvelopeTransactions(envelopeID uuid.UUID) ([]domain.EnvelopeTransaction, error) {
	rows, err := d.db.Query(`
		SELECT id, envelope_id, type, amount, balance_after, date, journal_entry_id, distribution_id, allocation_id
		FROM envelope_transactions WHERE envelope_id = ? ORDER BY seq
	`, envelopeID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EnvelopeTransaction
	for rows.Next() {
		var t domain.EnvelopeTransaction
		var idStr, envStr, amountStr, afterStr, dateStr string
		var entryID, distID, allocID sql.NullString
		if err := rows.Scan(&idStr, &envStr, &t.Type, &amountStr, &afterStr, &dateStr, &entryID, &distID, &allocID); err != nil {
			return nil, err
		}
		if t.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if t.EnvelopeID, err = uuid.Parse(envStr); err != nil {
			return nil, err
		}
		if t.Amount, err = parseDec(amountStr); err != nil {
			return nil, err
		}
		if t.BalanceAfter, err = parseDec(afterStr); err != nil {
			return nil, err
		}
		if t.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, err
		}
		if t.JournalEntryID, err = scanID(entryID); err != nil {
			return nil, err
		}
		if t.DistributionID, err = scanID(distID); err != nil {
			return nil, err
		}
		if t.AllocationID, err = scanID(allocID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertEnvelopeTxn(tx *sql.Tx, t domain.EnvelopeTransaction) error {
	_, err := tx.Exec(`
		INSERT INTO envelope_transactions (id, envelope_id, type, amount, balance_after, date, journal_entry_id, distribution_id, allocation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID.String(), t.EnvelopeID.String(), string(t.Type), t.Amount.String(), t.BalanceAfter.String(),
		t.Date.Format(dateFormat), nullID(t.JournalEntryID), nullID(t.DistributionID), nullID(t.AllocationID))
	return err
}

func (d *DB) Allocations(period string) ([]domain.BudgetAllocation, error) {
	query := `
		SELECT id, source_account_id, envelope_id, requested, applied, period, date
		FROM budget_allocations`
	args := []any{}
	if period != "" {
		query += ` WHERE period = ?`
		args = append(args, period)
	}
	query += ` ORDER BY date, id`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BudgetAllocation
	for rows.Next() {
		var a domain.BudgetAllocation
		var idStr, srcStr, envStr, reqStr, appStr, dateStr string
		if err := rows.Scan(&idStr, &srcStr, &envStr, &reqStr, &appStr, &a.Period, &dateStr); err != nil {
			return nil, err
		}
		if a.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if a.SourceAccountID, err = uuid.Parse(srcStr); err != nil {
			return nil, err
		}
		if a.EnvelopeID, err = uuid.Parse(envStr); err != nil {
			return nil, err
		}
		if a.Requested, err = parseDec(reqStr); err != nil {
			return nil, err
		}
		if a.Applied, err = parseDec(appStr); err != nil {
			return nil, err
		}
		if a.Date, err = time.Parse(dateFormat, dateStr); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ─── Atomic Batches ─────────────────────────────────────────────────────────

// ApplyPosting lands a whole posting in one SQL transaction.
func (d *DB) ApplyPosting(b domain.PostingBatch) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range b.Accounts {
		if err := upsertAccount(tx, a); err != nil {
			return fmt.Errorf("posting account %s: %w", a.ID, err)
		}
	}
	for _, e := range b.BudgetEnvelopes {
		if err := upsertBudgetEnvelope(tx, e); err != nil {
			return fmt.Errorf("posting budget envelope %s: %w", e.ID, err)
		}
	}
	for _, e := range b.PaymentEnvelopes {
		if err := upsertPaymentEnvelope(tx, e); err != nil {
			return fmt.Errorf("posting payment envelope %s: %w", e.ID, err)
		}
	}
	for _, t := range b.EnvelopeTxns {
		if err := insertEnvelopeTxn(tx, t); err != nil {
			return fmt.Errorf("posting envelope txn %s: %w", t.ID, err)
		}
	}
	if err := upsertEntry(tx, b.Entry); err != nil {
		return fmt.Errorf("posting entry %s: %w", b.Entry.ID, err)
	}
	return tx.Commit()
}

// ApplyAllocation lands one allocation run in one SQL transaction.
func (d *DB) ApplyAllocation(b domain.AllocationBatch) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range b.Envelopes {
		if err := upsertBudgetEnvelope(tx, e); err != nil {
			return fmt.Errorf("allocating envelope %s: %w", e.ID, err)
		}
	}
	for _, a := range b.Allocations {
		if _, err := tx.Exec(`
			INSERT INTO budget_allocations (id, source_account_id, envelope_id, requested, applied, period, date)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID.String(), a.SourceAccountID.String(), a.EnvelopeID.String(),
			a.Requested.String(), a.Applied.String(), a.Period, a.Date.Format(dateFormat)); err != nil {
			return fmt.Errorf("recording allocation %s: %w", a.ID, err)
		}
	}
	for _, t := range b.EnvelopeTxns {
		if err := insertEnvelopeTxn(tx, t); err != nil {
			return fmt.Errorf("recording envelope txn %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}
