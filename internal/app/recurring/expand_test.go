package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testTemplate(freq domain.Frequency, interval, dayOfMonth int, start time.Time) domain.RecurringJournalEntry {
	return domain.RecurringJournalEntry{
		ID:         uuid.New(),
		Name:       "rent",
		Frequency:  freq,
		Interval:   interval,
		DayOfMonth: dayOfMonth,
		StartDate:  start,
		Active:     true,
		Distributions: []domain.Distribution{
			{AccountID: uuid.New(), AccountType: domain.AccountAsset, Flow: domain.FlowFrom, Amount: decimal.RequireFromString("1200.00")},
			{AccountID: uuid.New(), AccountType: domain.AccountExpense, Flow: domain.FlowTo, Amount: decimal.RequireFromString("1200.00")},
		},
	}
}

// ─── Occurrence Dates ───────────────────────────────────────────────────────

func TestOccurrenceDates_DayBased(t *testing.T) {
	tests := []struct {
		name     string
		freq     domain.Frequency
		interval int
		want     []time.Time
	}{
		{
			name: "daily",
			freq: domain.FreqDaily,
			want: []time.Time{day(2026, 3, 1), day(2026, 3, 2), day(2026, 3, 3), day(2026, 3, 4)},
		},
		{
			name: "weekly",
			freq: domain.FreqWeekly,
			want: []time.Time{day(2026, 3, 1), day(2026, 3, 8), day(2026, 3, 15), day(2026, 3, 22), day(2026, 3, 29)},
		},
		{
			name: "biweekly",
			freq: domain.FreqBiweekly,
			want: []time.Time{day(2026, 3, 1), day(2026, 3, 15), day(2026, 3, 29)},
		},
		{
			name:     "every second week",
			freq:     domain.FreqWeekly,
			interval: 2,
			want:     []time.Time{day(2026, 3, 1), day(2026, 3, 15), day(2026, 3, 29)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := testTemplate(tt.freq, tt.interval, 0, day(2026, 3, 1))
			end := day(2026, 3, 31)
			if tt.freq == domain.FreqDaily {
				end = day(2026, 3, 4)
			}
			got, err := OccurrenceDates(tmpl, day(2026, 3, 1), end)
			if err != nil {
				t.Fatalf("OccurrenceDates() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d dates %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("date[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOccurrenceDates_MonthEndClamp(t *testing.T) {
	// Day-31 template through the year: short months clamp to their own
	// last day, never roll into the next month.
	tmpl := testTemplate(domain.FreqMonthly, 1, 31, day(2026, 1, 31))
	got, err := OccurrenceDates(tmpl, day(2026, 1, 1), day(2026, 6, 30))
	if err != nil {
		t.Fatal(err)
	}

	want := []time.Time{
		day(2026, 1, 31),
		day(2026, 2, 28),
		day(2026, 3, 31),
		day(2026, 4, 30),
		day(2026, 5, 31),
		day(2026, 6, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d", len(got), got, len(want))
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("date[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOccurrenceDates_StartMidMonth(t *testing.T) {
	// A template starting Jan 15 with day-of-month 1 must not produce a
	// Jan 1 occurrence: the recurrence begins at its start date, and the
	// skipped slot does not count toward an occurrence limit.
	tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 15))
	tmpl.EndAfterOccurrences = 3

	got, err := OccurrenceDates(tmpl, day(2026, 1, 1), day(2026, 12, 31))
	if err != nil {
		t.Fatal(err)
	}

	want := []time.Time{
		day(2026, 2, 1),
		day(2026, 3, 1),
		day(2026, 4, 1),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d", len(got), got, len(want))
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("date[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExpandTemplate_NoOccurrenceBeforeStart(t *testing.T) {
	// The start month's earlier day-of-month slot must not be realized
	// as a posted entry either.
	tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 15))

	entries, err := ExpandTemplate(tmpl, day(2026, 1, 1), day(2026, 3, 31), false, day(2026, 8, 29))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries %v, want 2", len(entries), entries)
	}
	for _, e := range entries {
		if e.Date.Before(tmpl.StartDate) {
			t.Errorf("entry dated %s precedes template start %s", e.Date.Format(time.DateOnly), tmpl.StartDate.Format(time.DateOnly))
		}
	}
}

func TestOccurrenceDates_LeapFebruary(t *testing.T) {
	tmpl := testTemplate(domain.FreqMonthly, 1, 30, day(2028, 1, 30))
	got, err := OccurrenceDates(tmpl, day(2028, 2, 1), day(2028, 2, 29))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Equal(day(2028, 2, 29)) {
		t.Errorf("got %v, want [2028-02-29]", got)
	}
}

func TestOccurrenceDates_QuarterlyAndAnnually(t *testing.T) {
	quarterly := testTemplate(domain.FreqQuarterly, 1, 15, day(2026, 1, 15))
	got, _ := OccurrenceDates(quarterly, day(2026, 1, 1), day(2026, 12, 31))
	if len(got) != 4 {
		t.Errorf("quarterly occurrences = %d, want 4", len(got))
	}

	annual := testTemplate(domain.FreqAnnually, 1, 1, day(2026, 7, 1))
	got, _ = OccurrenceDates(annual, day(2026, 1, 1), day(2029, 12, 31))
	if len(got) != 4 {
		t.Errorf("annual occurrences = %d, want 4", len(got))
	}
}

func TestOccurrenceDates_StopConditions(t *testing.T) {
	t.Run("template end date", func(t *testing.T) {
		tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
		end := day(2026, 3, 1)
		tmpl.EndDate = &end
		got, _ := OccurrenceDates(tmpl, day(2026, 1, 1), day(2026, 12, 31))
		if len(got) != 3 {
			t.Errorf("occurrences = %d, want 3 (Jan–Mar)", len(got))
		}
	})

	t.Run("occurrence limit", func(t *testing.T) {
		tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
		tmpl.EndAfterOccurrences = 5
		got, _ := OccurrenceDates(tmpl, day(2026, 1, 1), day(2026, 12, 31))
		if len(got) != 5 {
			t.Errorf("occurrences = %d, want 5", len(got))
		}
	})

	t.Run("occurrences before window count toward limit", func(t *testing.T) {
		tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
		tmpl.EndAfterOccurrences = 5
		got, _ := OccurrenceDates(tmpl, day(2026, 4, 1), day(2026, 12, 31))
		// Occurrences 1–3 fall before the window; only 4 and 5 land.
		if len(got) != 2 {
			t.Errorf("occurrences = %d, want 2", len(got))
		}
	})
}

func TestOccurrenceDates_InvalidTemplate(t *testing.T) {
	tmpl := testTemplate("fortnightly-ish", 1, 1, day(2026, 1, 1))
	if _, err := OccurrenceDates(tmpl, day(2026, 1, 1), day(2026, 12, 31)); err != domain.ErrInvalidFrequency {
		t.Errorf("err = %v, want ErrInvalidFrequency", err)
	}
}

// ─── Template Expansion ─────────────────────────────────────────────────────

func TestExpandTemplate_DraftPostedSplit(t *testing.T) {
	tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
	today := day(2026, 3, 15)

	entries, err := ExpandTemplate(tmpl, day(2026, 1, 1), day(2026, 6, 1), false, today)
	if err != nil {
		t.Fatalf("ExpandTemplate() error: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("entries = %d, want 6", len(entries))
	}

	for _, e := range entries {
		want := domain.StatusDraft
		if !e.Date.After(today) {
			want = domain.StatusPosted
		}
		if e.Status != want {
			t.Errorf("entry %s: status = %q, want %q", e.Date.Format(time.DateOnly), e.Status, want)
		}
		if len(e.Distributions) != 2 {
			t.Errorf("entry %s: distributions = %d, want 2", e.Date.Format(time.DateOnly), len(e.Distributions))
		}
		if !e.IsBalanced() {
			t.Errorf("entry %s: not balanced", e.Date.Format(time.DateOnly))
		}
	}
}

func TestExpandTemplate_AutoPostMarksAll(t *testing.T) {
	tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
	tmpl.AutoPost = true

	entries, err := ExpandTemplate(tmpl, day(2026, 1, 1), day(2026, 4, 1), false, day(2026, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Status != domain.StatusPosted {
			t.Errorf("entry %s: status = %q, want posted under auto_post", e.Date.Format(time.DateOnly), e.Status)
		}
	}
}

func TestExpandTemplate_FreshDistributionIDs(t *testing.T) {
	tmpl := testTemplate(domain.FreqMonthly, 1, 1, day(2026, 1, 1))
	entries, err := ExpandTemplate(tmpl, day(2026, 1, 1), day(2026, 2, 1), false, day(2026, 6, 1))
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[uuid.UUID]bool)
	for _, e := range entries {
		for _, d := range e.Distributions {
			if seen[d.ID] {
				t.Fatalf("distribution id %s reused across instances", d.ID)
			}
			seen[d.ID] = true
		}
	}
}

func TestExpandTemplates_SkipsInactiveAndSorts(t *testing.T) {
	a := testTemplate(domain.FreqMonthly, 1, 20, day(2026, 1, 20))
	b := testTemplate(domain.FreqMonthly, 1, 5, day(2026, 1, 5))
	inactive := testTemplate(domain.FreqDaily, 1, 0, day(2026, 1, 1))
	inactive.Active = false

	entries, err := ExpandTemplates([]domain.RecurringJournalEntry{a, b, inactive}, day(2026, 1, 1), day(2026, 2, 28), false, day(2026, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4 (two months of two templates)", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date.Before(entries[i-1].Date) {
			t.Errorf("entries out of order: %s before %s", entries[i].Date, entries[i-1].Date)
		}
	}
}
