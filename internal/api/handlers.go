package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/app/engine"
	"github.com/pocketledger/pocketledger/internal/app/recurring"
	"github.com/pocketledger/pocketledger/internal/domain"
	"github.com/pocketledger/pocketledger/internal/infra/observability"
)

// ─── Accounts ───────────────────────────────────────────────────────────────

type createAccountRequest struct {
	Name              string             `json:"name"`
	Type              domain.AccountType `json:"type"`
	BudgetEnvelopeID  *uuid.UUID         `json:"budget_envelope_id,omitempty"`
	PaymentEnvelopeID *uuid.UUID         `json:"payment_envelope_id,omitempty"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := domain.NewAccount(req.Name, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	a.BudgetEnvelopeID = req.BudgetEnvelopeID
	a.PaymentEnvelopeID = req.PaymentEnvelopeID

	if err := s.store.SaveAccount(a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.Accounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	a, err := s.store.Account(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAccountView(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	view, err := s.engine.AccountView(id, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEquationCheck(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of date")
		return
	}
	check, err := s.engine.ValidateEquation(id, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"check":    check,
		"balanced": check.Balanced(),
	})
}

func (s *Server) handleAccountForecast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	target, err := queryDate(r, "target", time.Now().AddDate(0, 1, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target date")
		return
	}
	fc, err := s.composer.ForecastAccount(id, target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// ─── Envelopes ──────────────────────────────────────────────────────────────

type createBudgetEnvelopeRequest struct {
	Name              string                `json:"name"`
	FundingAccountID  uuid.UUID             `json:"funding_account_id"`
	MonthlyAllocation decimal.Decimal       `json:"monthly_allocation"`
	Rollover          domain.RolloverPolicy `json:"rollover_policy"`
	CapMax            decimal.Decimal       `json:"cap_max"`
}

func (s *Server) handleCreateBudgetEnvelope(w http.ResponseWriter, r *http.Request) {
	var req createBudgetEnvelopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	env, err := domain.NewBudgetEnvelope(req.Name, req.FundingAccountID, req.MonthlyAllocation, req.Rollover, req.CapMax)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.SaveBudgetEnvelope(env); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) handleListBudgetEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := s.store.BudgetEnvelopes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.UpdateEnvelopeBalances(envs)
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleGetBudgetEnvelope(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope id")
		return
	}
	env, err := s.store.BudgetEnvelope(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleEnvelopeTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope id")
		return
	}
	txns, err := s.store.EnvelopeTransactions(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleEnvelopeForecast(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid envelope id")
		return
	}
	target, err := queryDate(r, "target", time.Now().AddDate(0, 3, 0))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target date")
		return
	}

	scheduled, err := s.scheduledForEnvelope(id, time.Now(), target)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	fc, err := s.engine.ForecastEnvelope(id, target, scheduled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

// scheduledForEnvelope expands the recurring templates over the window
// and collects the legs that route to the given budget envelope.
func (s *Server) scheduledForEnvelope(envID uuid.UUID, from, to time.Time) ([]engine.ScheduledExpense, error) {
	tmpls, err := s.store.RecurringTemplates()
	if err != nil {
		return nil, err
	}
	entries, err := recurring.ExpandTemplates(tmpls, from, to, false, from)
	if err != nil {
		return nil, err
	}

	var out []engine.ScheduledExpense
	for _, e := range entries {
		for _, d := range e.Distributions {
			acct, err := s.store.Account(d.AccountID)
			if err != nil {
				continue // template references an account not yet created
			}
			resolved := domain.ResolveBudgetEnvelope(d, acct)
			if resolved != nil && *resolved == envID && d.BalanceImpact().IsPositive() {
				out = append(out, engine.ScheduledExpense{Date: e.Date, Amount: d.Amount})
			}
		}
	}
	return out, nil
}

type createPaymentEnvelopeRequest struct {
	Name             string    `json:"name"`
	FundingAccountID uuid.UUID `json:"funding_account_id"`
	LinkedAccountID  uuid.UUID `json:"linked_account_id"`
}

func (s *Server) handleCreatePaymentEnvelope(w http.ResponseWriter, r *http.Request) {
	var req createPaymentEnvelopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	env, err := domain.NewPaymentEnvelope(req.Name, req.FundingAccountID, req.LinkedAccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.SavePaymentEnvelope(env); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) handleListPaymentEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := s.store.PaymentEnvelopes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

// ─── Journal Entries ────────────────────────────────────────────────────────

type createEntryRequest struct {
	Date          string                `json:"date"` // YYYY-MM-DD
	Memo          string                `json:"memo"`
	Distributions []domain.Distribution `json:"distributions"`
	Post          bool                  `json:"post"` // post immediately after creating
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	entry := domain.NewJournalEntry(date, req.Memo)
	for _, d := range req.Distributions {
		if err := entry.AddDistribution(d); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	if !req.Post {
		if err := s.store.SaveJournalEntry(*entry); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, entry)
		return
	}

	txns, err := s.engine.PostEntry(entry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"entry":                 entry,
		"envelope_transactions": txns,
	})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.JournalEntries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	entry, err := s.store.JournalEntry(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePostEntry(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	entry, err := s.store.JournalEntry(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	txns, err := s.engine.PostEntry(&entry)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entry":                 entry,
		"envelope_transactions": txns,
	})
}

func (s *Server) handleVoidEntry(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	if err := s.engine.VoidEntry(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "void"})
}

type reverseEntryRequest struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

func (s *Server) handleReverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	var req reverseEntryRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	date := time.Now()
	if req.Date != "" {
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	reversal, txns, err := s.engine.ReverseEntry(id, date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"entry":                 reversal,
		"envelope_transactions": txns,
	})
}

// ─── Allocations ────────────────────────────────────────────────────────────

type runAllocationsRequest struct {
	SourceAccountID uuid.UUID `json:"source_account_id"`
	Date            string    `json:"date,omitempty"`   // YYYY-MM-DD, defaults to today
	Period          string    `json:"period,omitempty"` // YYYY-MM, defaults to the date's month
}

func (s *Server) handleRunAllocations(w http.ResponseWriter, r *http.Request) {
	var req runAllocationsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := time.Now()
	if req.Date != "" {
		var err error
		if date, err = time.Parse(time.DateOnly, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}
	period := req.Period
	if period == "" {
		period = domain.PeriodOf(date)
	}

	allocs, err := s.engine.ApplyMonthlyAllocations(req.SourceAccountID, date, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if envs, err := s.store.BudgetEnvelopes(); err == nil {
		observability.UpdateEnvelopeBalances(envs)
	}
	writeJSON(w, http.StatusOK, allocs)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	allocs, err := s.store.Allocations(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, allocs)
}

// ─── Validation ─────────────────────────────────────────────────────────────

type validateAllocationRequest struct {
	BankAccountID uuid.UUID       `json:"bank_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

func (s *Server) handleValidateAllocation(w http.ResponseWriter, r *http.Request) {
	var req validateAllocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.ValidateAllocation(req.BankAccountID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type validateExpenseRequest struct {
	EnvelopeID     uuid.UUID       `json:"envelope_id"`
	Amount         decimal.Decimal `json:"amount"`
	AllowOverspend bool            `json:"allow_overspend"`
}

func (s *Server) handleValidateExpense(w http.ResponseWriter, r *http.Request) {
	var req validateExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.ValidateExpense(req.EnvelopeID, req.Amount, req.AllowOverspend)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Recurring ──────────────────────────────────────────────────────────────

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl domain.RecurringJournalEntry
	if err := decodeJSON(r, &tmpl); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	tmpl.Active = true
	if err := tmpl.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.store.SaveRecurringTemplate(tmpl); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tmpls, err := s.store.RecurringTemplates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tmpls)
}

type expandRecurringRequest struct {
	Start    string `json:"start"` // YYYY-MM-DD
	End      string `json:"end"`   // YYYY-MM-DD
	AutoPost bool   `json:"auto_post"`
	Save     bool   `json:"save"` // persist the expanded entries
}

func (s *Server) handleExpandRecurring(w http.ResponseWriter, r *http.Request) {
	var req expandRecurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := time.Parse(time.DateOnly, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := time.Parse(time.DateOnly, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
		return
	}

	tmpls, err := s.store.RecurringTemplates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries, err := recurring.ExpandTemplates(tmpls, start, end, req.AutoPost, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if req.Save {
		for i := range entries {
			if entries[i].Status == domain.StatusPosted {
				// Expansion marks entries eligible for posting; the engine
				// does the actual post so balances and envelopes move.
				entries[i].Status = domain.StatusDraft
				if _, err := s.engine.PostEntry(&entries[i]); err != nil {
					writeDomainError(w, err)
					return
				}
				continue
			}
			if err := s.store.SaveJournalEntry(entries[i]); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, entries)
}
