// Package api provides the HTTP server for pocketledger. All routes
// are thin adapters over the ledger engine; no business rules live
// here.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pocketledger/pocketledger/internal/app/engine"
	"github.com/pocketledger/pocketledger/internal/app/forecast"
	"github.com/pocketledger/pocketledger/internal/domain"
)

// Server is the pocketledger HTTP API server.
type Server struct {
	store          domain.Store
	engine         *engine.Service
	composer       *forecast.Composer
	metricsEnabled bool
}

// NewServer creates a new API server over the given store and engine.
func NewServer(store domain.Store, eng *engine.Service, comp *forecast.Composer) *Server {
	return &Server{store: store, engine: eng, composer: comp}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Get("/{id}/view", s.handleAccountView)
			r.Get("/{id}/equation", s.handleEquationCheck)
			r.Get("/{id}/forecast", s.handleAccountForecast)
		})

		r.Route("/envelopes", func(r chi.Router) {
			r.Get("/", s.handleListBudgetEnvelopes)
			r.Post("/", s.handleCreateBudgetEnvelope)
			r.Get("/{id}", s.handleGetBudgetEnvelope)
			r.Get("/{id}/transactions", s.handleEnvelopeTransactions)
			r.Get("/{id}/forecast", s.handleEnvelopeForecast)
		})

		r.Route("/payment-envelopes", func(r chi.Router) {
			r.Get("/", s.handleListPaymentEnvelopes)
			r.Post("/", s.handleCreatePaymentEnvelope)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Post("/", s.handleCreateEntry)
			r.Get("/{id}", s.handleGetEntry)
			r.Post("/{id}/post", s.handlePostEntry)
			r.Post("/{id}/void", s.handleVoidEntry)
			r.Post("/{id}/reverse", s.handleReverseEntry)
		})

		r.Get("/allocations", s.handleListAllocations)
		r.Post("/allocations", s.handleRunAllocations)

		r.Post("/validate/allocation", s.handleValidateAllocation)
		r.Post("/validate/expense", s.handleValidateExpense)

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListTemplates)
			r.Post("/", s.handleCreateTemplate)
			r.Post("/expand", s.handleExpandRecurring)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrBudgetEnvelopeNotFound),
		errors.Is(err, domain.ErrPaymentEnvelopeNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEntryNotDraft),
		errors.Is(err, domain.ErrEntryNotPosted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEntryNotBalanced),
		errors.Is(err, domain.ErrEmptyEntry),
		errors.Is(err, domain.ErrAmountNotPositive),
		errors.Is(err, domain.ErrInvalidAccountType),
		errors.Is(err, domain.ErrInvalidFlow),
		errors.Is(err, domain.ErrInvalidRollover),
		errors.Is(err, domain.ErrInvalidFrequency),
		errors.Is(err, domain.ErrEnvelopeInactive),
		errors.Is(err, domain.ErrEmptyName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// urlID parses the {id} path parameter as a UUID.
func urlID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// queryDate parses a date query parameter, defaulting when absent.
func queryDate(r *http.Request, key string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
