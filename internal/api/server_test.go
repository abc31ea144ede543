package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/app/engine"
	"github.com/pocketledger/pocketledger/internal/app/forecast"
	"github.com/pocketledger/pocketledger/internal/domain"
	"github.com/pocketledger/pocketledger/internal/infra/memstore"
)

func newTestServer(t *testing.T) (*httptest.Server, domain.Store) {
	t.Helper()
	store := memstore.New()
	srv := NewServer(store, engine.New(store), forecast.New(store))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateAccountAndEnvelope(t *testing.T) {
	ts, _ := newTestServer(t)

	var acct domain.Account
	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]interface{}{
		"name": "Checking",
		"type": "asset",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, want 201", resp.StatusCode)
	}
	decodeBody(t, resp, &acct)
	if acct.Name != "Checking" || acct.Type != domain.AccountAsset {
		t.Errorf("account = %+v", acct)
	}

	var env domain.BudgetEnvelope
	resp = postJSON(t, ts.URL+"/v1/envelopes", map[string]interface{}{
		"name":               "Groceries",
		"funding_account_id": acct.ID,
		"monthly_allocation": "300",
		"rollover_policy":    "accumulate",
		"cap_max":            "0",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create envelope status = %d, want 201", resp.StatusCode)
	}
	decodeBody(t, resp, &env)
	if env.FundingAccountID != acct.ID || !env.Active {
		t.Errorf("envelope = %+v", env)
	}
}

func TestCreateAccountRejectsBadType(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/v1/accounts", map[string]interface{}{
		"name": "Mystery",
		"type": "crypto",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestPostEntryEndToEnd(t *testing.T) {
	ts, store := newTestServer(t)

	checking, _ := domain.NewAccount("Checking", domain.AccountAsset)
	checking.Balance = decimal.RequireFromString("1000")
	groceries, _ := domain.NewAccount("Grocery Spending", domain.AccountExpense)
	if err := store.SaveAccount(checking); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveAccount(groceries); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, ts.URL+"/v1/entries", map[string]interface{}{
		"date": "2026-08-15",
		"memo": "groceries",
		"post": true,
		"distributions": []map[string]interface{}{
			{"account_id": checking.ID, "account_type": "asset", "flow_direction": "from", "amount": "125.50"},
			{"account_id": groceries.ID, "account_type": "expense", "flow_direction": "to", "amount": "125.50"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post entry status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	got, err := store.Account(checking.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("874.50")) {
		t.Errorf("checking balance = %s, want 874.50", got.Balance)
	}
}

func TestPostEntryRejectsUnbalanced(t *testing.T) {
	ts, store := newTestServer(t)

	checking, _ := domain.NewAccount("Checking", domain.AccountAsset)
	rent, _ := domain.NewAccount("Rent", domain.AccountExpense)
	store.SaveAccount(checking)
	store.SaveAccount(rent)

	resp := postJSON(t, ts.URL+"/v1/entries", map[string]interface{}{
		"date": "2026-08-15",
		"memo": "lopsided",
		"post": true,
		"distributions": []map[string]interface{}{
			{"account_id": checking.ID, "account_type": "asset", "flow_direction": "from", "amount": "100"},
			{"account_id": rent.ID, "account_type": "expense", "flow_direction": "to", "amount": "90"},
		},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestAccountViewRoute(t *testing.T) {
	ts, store := newTestServer(t)

	checking, _ := domain.NewAccount("Checking", domain.AccountAsset)
	checking.Balance = decimal.RequireFromString("1000")
	store.SaveAccount(checking)

	resp, err := http.Get(fmt.Sprintf("%s/v1/accounts/%s/view", ts.URL, checking.ID))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var view domain.BankAccountView
	decodeBody(t, resp, &view)
	if !view.BankBalance.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("bank balance = %s, want 1000", view.BankBalance)
	}
	if !view.AvailableToAllocate.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("available = %s, want 1000", view.AvailableToAllocate)
	}
}

func TestAccountViewUnknownAccount(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/accounts/00000000-0000-0000-0000-000000000001/view")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRunAllocationsRoute(t *testing.T) {
	ts, store := newTestServer(t)

	checking, _ := domain.NewAccount("Checking", domain.AccountAsset)
	checking.Balance = decimal.RequireFromString("1000")
	store.SaveAccount(checking)
	env, _ := domain.NewBudgetEnvelope("Dining", checking.ID,
		decimal.RequireFromString("150"), domain.RolloverAccumulate, decimal.Zero)
	store.SaveBudgetEnvelope(env)

	resp := postJSON(t, ts.URL+"/v1/allocations", map[string]interface{}{
		"source_account_id": checking.ID,
		"date":              "2026-08-01",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var allocs []domain.BudgetAllocation
	decodeBody(t, resp, &allocs)
	if len(allocs) != 1 {
		t.Fatalf("got %d allocations, want 1", len(allocs))
	}
	if !allocs[0].Applied.Equal(decimal.RequireFromString("150")) {
		t.Errorf("applied = %s, want 150", allocs[0].Applied)
	}
	if allocs[0].Period != "2026-08" {
		t.Errorf("period = %q, want 2026-08", allocs[0].Period)
	}
}

func TestValidateExpenseRoute(t *testing.T) {
	ts, store := newTestServer(t)

	checking, _ := domain.NewAccount("Checking", domain.AccountAsset)
	store.SaveAccount(checking)
	env, _ := domain.NewBudgetEnvelope("Dining", checking.ID,
		decimal.RequireFromString("150"), domain.RolloverReset, decimal.Zero)
	env.Balance = decimal.RequireFromString("100")
	store.SaveBudgetEnvelope(env)

	resp := postJSON(t, ts.URL+"/v1/validate/expense", map[string]interface{}{
		"envelope_id": env.ID,
		"amount":      "250",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res domain.ValidationResult
	decodeBody(t, resp, &res)
	if res.Valid {
		t.Error("overspend without allow flag should not validate")
	}
	if res.Warning == "" {
		t.Error("expected a warning message")
	}
}
