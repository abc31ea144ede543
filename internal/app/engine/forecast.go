package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// ─── Envelope Forecasting ───────────────────────────────────────────────────

// ScheduledExpense is a known future spend against an envelope.
type ScheduledExpense struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// EnvelopeForecast projects an envelope balance to a target date.
type EnvelopeForecast struct {
	EnvelopeID         uuid.UUID       `json:"envelope_id"`
	TargetDate         time.Time       `json:"target_date"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	AllocationsApplied int             `json:"allocations_applied"`
	ScheduledExpenses  decimal.Decimal `json:"scheduled_expenses"`
	ProjectedBalance   decimal.Decimal `json:"projected_balance"`
}

// ForecastEnvelope projects an envelope's balance forward: one
// allocation per whole calendar month strictly after the last applied
// allocation, up to and including the target month, compounded under the
// envelope's rollover policy, minus scheduled expenses dated on or
// before the target.
//
// The cap policy clamps at every monthly step, not just at the end — a
// capped envelope must never appear to exceed its cap mid-projection.
func (s *Service) ForecastEnvelope(envelopeID uuid.UUID, target time.Time, scheduled []ScheduledExpense) (EnvelopeForecast, error) {
	env, err := s.store.BudgetEnvelope(envelopeID)
	if err != nil {
		return EnvelopeForecast{}, fmt.Errorf("%w: %s", domain.ErrBudgetEnvelopeNotFound, envelopeID)
	}

	base := s.now()
	if env.LastAllocatedPeriod != "" {
		if t, perr := time.Parse("2006-01", env.LastAllocatedPeriod); perr == nil {
			base = t
		}
	}

	months := monthsBetween(base, target)
	balance := env.Balance
	for i := 0; i < months; i++ {
		balance = domain.ApplyRollover(env.Rollover, env.CapMax, balance, env.MonthlyAllocation)
	}

	spent := decimal.Zero
	for _, e := range scheduled {
		if !e.Date.After(target) {
			spent = spent.Add(e.Amount)
		}
	}

	return EnvelopeForecast{
		EnvelopeID:         envelopeID,
		TargetDate:         target,
		CurrentBalance:     env.Balance,
		AllocationsApplied: months,
		ScheduledExpenses:  spent,
		ProjectedBalance:   balance.Sub(spent),
	}, nil
}

// monthsBetween counts calendar months from a (exclusive) to b
// (inclusive). Same month or an earlier target counts zero.
func monthsBetween(a, b time.Time) int {
	n := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if n < 0 {
		return 0
	}
	return n
}
