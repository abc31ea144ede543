// Package forecast composes current account balances with recurring
// expansion into forward balance estimates. Envelope-level projections
// live in the engine; this package deliberately leaves the two apart —
// recurring flows are near-certain, envelope spend estimates are not,
// and callers combine them at their own confidence level.
package forecast

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/app/recurring"
	"github.com/pocketledger/pocketledger/internal/domain"
)

// AccountForecast projects a real account balance to a target date.
type AccountForecast struct {
	AccountID           uuid.UUID       `json:"account_id"`
	TargetDate          time.Time       `json:"target_date"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	ProjectedBalance    decimal.Decimal `json:"projected_balance"`
	TransactionsApplied int             `json:"transactions_applied"`
}

// Composer produces account forecasts from a store snapshot.
type Composer struct {
	store domain.Store
	now   func() time.Time
}

// New creates a composer backed by the given store.
func New(store domain.Store) *Composer {
	return &Composer{store: store, now: time.Now}
}

// SetClock overrides the composer's clock. Tests use this to pin "today".
func (c *Composer) SetClock(now func() time.Time) { c.now = now }

// ForecastAccount expands every active recurring template from the
// account's last known transaction date to the target, sums the balance
// impact of the legs touching the account, and adds it to the current
// balance. Envelope-estimated variable spending is not included — that
// is ForecastEnvelope's separate, lower-confidence estimate.
func (c *Composer) ForecastAccount(accountID uuid.UUID, target time.Time) (AccountForecast, error) {
	acct, err := c.store.Account(accountID)
	if err != nil {
		return AccountForecast{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, accountID)
	}

	start, err := c.forecastStart(accountID)
	if err != nil {
		return AccountForecast{}, err
	}

	tmpls, err := c.store.RecurringTemplates()
	if err != nil {
		return AccountForecast{}, err
	}
	entries, err := recurring.ExpandTemplates(tmpls, start, target, false, c.now())
	if err != nil {
		return AccountForecast{}, err
	}

	projected := acct.Balance
	applied := 0
	for _, e := range entries {
		touched := false
		for _, d := range e.Distributions {
			if d.AccountID == accountID {
				projected = projected.Add(d.BalanceImpact())
				touched = true
			}
		}
		if touched {
			applied++
		}
	}

	return AccountForecast{
		AccountID:           accountID,
		TargetDate:          target,
		CurrentBalance:      acct.Balance,
		ProjectedBalance:    projected,
		TransactionsApplied: applied,
	}, nil
}

// forecastStart is the day after the account's last posted entry, so
// already-realized recurring occurrences are not applied twice. An
// account with no history starts from tomorrow.
func (c *Composer) forecastStart(accountID uuid.UUID) (time.Time, error) {
	entries, err := c.store.JournalEntries()
	if err != nil {
		return time.Time{}, err
	}

	last := time.Time{}
	for _, e := range entries {
		if e.Status != domain.StatusPosted {
			continue
		}
		for _, d := range e.Distributions {
			if d.AccountID == accountID && e.Date.After(last) {
				last = e.Date
				break
			}
		}
	}
	if last.IsZero() {
		last = c.now()
	}
	return last.AddDate(0, 0, 1), nil
}
