// Package sqlite is the durable domain.Store. Pure-Go driver, so the
// binary stays CGO-free. Amounts are stored as decimal strings — never
// as REAL — and batches apply inside one SQL transaction.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and runs
// the schema migrations. Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: SQLite serializes writers anyway, and one
	// connection keeps ":memory:" databases from vanishing between calls.
	handle.SetMaxOpenConns(1)

	d := &DB{db: handle}
	if err := d.migrate(); err != nil {
		handle.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// Migrations returns the schema migration statements. Each string is a
// single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			type                TEXT NOT NULL,
			balance             TEXT NOT NULL DEFAULT '0',
			budget_envelope_id  TEXT,
			payment_envelope_id TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS budget_envelopes (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			funding_account_id    TEXT NOT NULL,
			monthly_allocation    TEXT NOT NULL DEFAULT '0',
			rollover              TEXT NOT NULL,
			cap_max               TEXT NOT NULL DEFAULT '0',
			balance               TEXT NOT NULL DEFAULT '0',
			allocated_this_period TEXT NOT NULL DEFAULT '0',
			spent_this_period     TEXT NOT NULL DEFAULT '0',
			last_allocated_period TEXT NOT NULL DEFAULT '',
			active                INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budget_envelopes_funding ON budget_envelopes(funding_account_id)`,

		`CREATE TABLE IF NOT EXISTS payment_envelopes (
			id                 TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			funding_account_id TEXT NOT NULL,
			linked_account_id  TEXT NOT NULL,
			balance            TEXT NOT NULL DEFAULT '0',
			active             INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_envelopes_funding ON payment_envelopes(funding_account_id)`,

		`CREATE TABLE IF NOT EXISTS journal_entries (
			id         TEXT PRIMARY KEY,
			entry_date TEXT NOT NULL,
			memo       TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL,
			posted_at  TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS distributions (
			id                  TEXT PRIMARY KEY,
			entry_id            TEXT NOT NULL REFERENCES journal_entries(id),
			position            INTEGER NOT NULL,
			account_id          TEXT NOT NULL,
			account_type        TEXT NOT NULL,
			flow                TEXT NOT NULL,
			amount              TEXT NOT NULL,
			budget_envelope_id  TEXT,
			payment_envelope_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_distributions_entry ON distributions(entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_distributions_account ON distributions(account_id)`,

		`CREATE TABLE IF NOT EXISTS recurring_templates (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL,
			frequency             TEXT NOT NULL,
			interval              INTEGER NOT NULL DEFAULT 1,
			day_of_month          INTEGER NOT NULL DEFAULT 0,
			start_date            TEXT NOT NULL,
			end_date              TEXT,
			end_after_occurrences INTEGER NOT NULL DEFAULT 0,
			auto_post             INTEGER NOT NULL DEFAULT 0,
			active                INTEGER NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS template_distributions (
			id                  TEXT PRIMARY KEY,
			template_id         TEXT NOT NULL REFERENCES recurring_templates(id),
			position            INTEGER NOT NULL,
			account_id          TEXT NOT NULL,
			account_type        TEXT NOT NULL,
			flow                TEXT NOT NULL,
			amount              TEXT NOT NULL,
			budget_envelope_id  TEXT,
			payment_envelope_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_template_distributions_template ON template_distributions(template_id)`,

		`CREATE TABLE IF NOT EXISTS budget_allocations (
			id                TEXT PRIMARY KEY,
			source_account_id TEXT NOT NULL,
			envelope_id       TEXT NOT NULL,
			requested         TEXT NOT NULL,
			applied           TEXT NOT NULL,
			period            TEXT NOT NULL,
			date              TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budget_allocations_period ON budget_allocations(period)`,

		// Append-only: rows are inserted by batch apply and never
		// updated or deleted. seq preserves replay order.
		`CREATE TABLE IF NOT EXISTS envelope_transactions (
			seq              INTEGER PRIMARY KEY AUTOINCREMENT,
			id               TEXT NOT NULL UNIQUE,
			envelope_id      TEXT NOT NULL,
			type             TEXT NOT NULL,
			amount           TEXT NOT NULL,
			balance_after    TEXT NOT NULL,
			date             TEXT NOT NULL,
			journal_entry_id TEXT,
			distribution_id  TEXT,
			allocation_id    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_envelope_transactions_envelope ON envelope_transactions(envelope_id)`,
	}
}

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
