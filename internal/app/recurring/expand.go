// Package recurring turns recurring journal templates into concrete
// dated entries. Pure calendar arithmetic: no store, no clock of its
// own — callers pass "today" in.
package recurring

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// ─── Occurrence Dates ───────────────────────────────────────────────────────

// OccurrenceDates walks a template's schedule and returns the occurrence
// dates falling inside [start, end]. The walk stops at the window end,
// the template's own end date, or its occurrence limit — whichever comes
// first. Occurrences before the window still count toward the limit;
// no occurrence ever precedes the template's own start date.
//
// Day-based frequencies advance by a fixed day step (1/7/14 × interval).
// Month-based frequencies advance by calendar months and clamp to the
// template's day of month: a day-31 template lands on the last day of a
// 30-day month, never skips into the next one.
func OccurrenceDates(tmpl domain.RecurringJournalEntry, start, end time.Time) ([]time.Time, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	interval := tmpl.EffectiveInterval()
	var dates []time.Time
	count := 0

	if tmpl.Frequency.DayBased() {
		step := tmpl.Frequency.StepDays() * interval
		for cur := tmpl.StartDate; !cur.After(end); cur = cur.AddDate(0, 0, step) {
			if tmpl.EndDate != nil && cur.After(*tmpl.EndDate) {
				break
			}
			count++
			if !cur.Before(start) {
				dates = append(dates, cur)
			}
			if tmpl.EndAfterOccurrences > 0 && count >= tmpl.EndAfterOccurrences {
				break
			}
		}
		return dates, nil
	}

	stepMonths := tmpl.Frequency.StepMonths() * interval
	day := tmpl.DayOfMonth
	if day == 0 {
		day = tmpl.StartDate.Day()
	}
	for i := 0; ; i++ {
		cur := monthOccurrence(tmpl.StartDate, i*stepMonths, day)
		if cur.After(end) {
			break
		}
		if tmpl.EndDate != nil && cur.After(*tmpl.EndDate) {
			break
		}
		// The start month's day-of-month slot can fall before the
		// template even begins; the recurrence starts at StartDate.
		if cur.Before(tmpl.StartDate) {
			continue
		}
		count++
		if !cur.Before(start) {
			dates = append(dates, cur)
		}
		if tmpl.EndAfterOccurrences > 0 && count >= tmpl.EndAfterOccurrences {
			break
		}
	}
	return dates, nil
}

// monthOccurrence returns the occurrence in the anchor's month shifted
// by the given month count, on the requested day clamped to the month's
// last day. Shifting from the first of the month keeps a day-31 anchor
// from drifting: Jan 31 + 1 month stays in February.
func monthOccurrence(anchor time.Time, months, day int) time.Time {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	first = first.AddDate(0, months, 0)
	if lastDay := first.AddDate(0, 1, -1).Day(); day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, anchor.Location())
}

// ─── Template Expansion ─────────────────────────────────────────────────────

// ExpandTemplate instantiates one draft-or-posted journal entry per
// occurrence of the template inside [start, end]. An occurrence is
// marked posted if autoPost is set (by caller or template) or if its
// date is not after today — past and present occurrences are realized,
// future ones stay drafts so forecasting can tell the certain from the
// merely scheduled.
//
// The "posted" status here is a marker only; the entries carry no
// envelope side effects until the engine posts them.
func ExpandTemplate(tmpl domain.RecurringJournalEntry, start, end time.Time, autoPost bool, today time.Time) ([]domain.JournalEntry, error) {
	dates, err := OccurrenceDates(tmpl, start, end)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.JournalEntry, 0, len(dates))
	for _, d := range dates {
		entry := domain.NewJournalEntry(d, tmpl.Name)
		for _, dist := range tmpl.Distributions {
			clone := dist
			clone.ID = uuid.New()
			if err := entry.AddDistribution(clone); err != nil {
				return nil, err
			}
		}
		if autoPost || tmpl.AutoPost || !d.After(today) {
			entry.Status = domain.StatusPosted
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ExpandTemplates expands every active template over the window and
// returns the combined entries ordered by date.
func ExpandTemplates(tmpls []domain.RecurringJournalEntry, start, end time.Time, autoPost bool, today time.Time) ([]domain.JournalEntry, error) {
	var out []domain.JournalEntry
	for _, tmpl := range tmpls {
		if !tmpl.Active {
			continue
		}
		entries, err := ExpandTemplate(tmpl, start, end, autoPost, today)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
