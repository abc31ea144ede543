package domain

import (
	"time"

	"github.com/google/uuid"
)

// ─── Recurring Templates ────────────────────────────────────────────────────

// Frequency is the repetition unit of a recurring template.
type Frequency string

const (
	FreqDaily        Frequency = "daily"
	FreqWeekly       Frequency = "weekly"
	FreqBiweekly     Frequency = "biweekly"
	FreqMonthly      Frequency = "monthly"
	FreqQuarterly    Frequency = "quarterly"
	FreqSemiannually Frequency = "semiannually"
	FreqAnnually     Frequency = "annually"
)

// Valid reports whether the frequency is a known unit.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly, FreqQuarterly, FreqSemiannually, FreqAnnually:
		return true
	}
	return false
}

// DayBased reports whether the frequency advances by a fixed day count
// rather than by calendar months.
func (f Frequency) DayBased() bool {
	return f == FreqDaily || f == FreqWeekly || f == FreqBiweekly
}

// StepDays returns the day increment for a day-based frequency.
func (f Frequency) StepDays() int {
	switch f {
	case FreqWeekly:
		return 7
	case FreqBiweekly:
		return 14
	default:
		return 1
	}
}

// StepMonths returns the month increment for a month-based frequency.
func (f Frequency) StepMonths() int {
	switch f {
	case FreqQuarterly:
		return 3
	case FreqSemiannually:
		return 6
	case FreqAnnually:
		return 12
	default:
		return 1
	}
}

// RecurringJournalEntry is the immutable expansion contract: a journal
// entry shape plus a schedule. Expansion never mutates the template;
// only the user editing it does.
type RecurringJournalEntry struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"` // every N frequency units; 0 means 1

	// DayOfMonth pins month-based occurrences to a day; months with
	// fewer days clamp to their last day.
	DayOfMonth int `json:"day_of_month,omitempty"`

	StartDate           time.Time  `json:"start_date"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	EndAfterOccurrences int        `json:"end_after_occurrences,omitempty"` // 0 means unbounded

	Distributions []Distribution `json:"distribution_template"`
	AutoPost      bool           `json:"auto_post"`
	Active        bool           `json:"active"`
}

// EffectiveInterval returns the interval with the zero value normalized
// to 1.
func (r RecurringJournalEntry) EffectiveInterval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Validate checks the template's structural rules.
func (r RecurringJournalEntry) Validate() error {
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if len(r.Distributions) < 2 {
		return ErrEmptyEntry
	}
	for _, d := range r.Distributions {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}
