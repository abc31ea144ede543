package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency. Structural
// violations are hard errors; advisory outcomes (over-allocation,
// overspend) are ValidationResults, never errors.

var (
	// Entry errors
	ErrEntryNotBalanced   = errors.New("journal entry is not balanced")
	ErrEntryNotDraft      = errors.New("journal entry is not a draft")
	ErrEntryNotPosted     = errors.New("journal entry is not posted")
	ErrEmptyEntry         = errors.New("journal entry needs at least two distributions")
	ErrAmountNotPositive  = errors.New("distribution amount must be positive")
	ErrInvalidAccountType = errors.New("unknown account type")
	ErrInvalidFlow        = errors.New("flow direction must be from or to")

	// Reference errors
	ErrAccountNotFound         = errors.New("account not found")
	ErrBudgetEnvelopeNotFound  = errors.New("budget envelope not found")
	ErrPaymentEnvelopeNotFound = errors.New("payment envelope not found")
	ErrEntryNotFound           = errors.New("journal entry not found")
	ErrTemplateNotFound        = errors.New("recurring template not found")
	ErrEnvelopeInactive        = errors.New("envelope is deactivated")

	// Setup errors
	ErrEmptyName        = errors.New("name can't be empty")
	ErrInvalidRollover  = errors.New("invalid rollover policy")
	ErrInvalidFrequency = errors.New("invalid recurrence frequency")
)
