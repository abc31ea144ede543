// Package observability exposes the Prometheus metrics for the ledger
// and budgeting engine. Metrics are registered with promauto on the
// default registry and served by the API's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pocketledger/pocketledger/internal/domain"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// EntriesPosted tracks total journal entries posted.
var EntriesPosted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pocketledger",
	Subsystem: "ledger",
	Name:      "entries_posted_total",
	Help:      "Total journal entries posted.",
})

// EquationCheckFailures tracks fundamental-equation validation failures.
// Any increase here means a posting bug; alert on it.
var EquationCheckFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pocketledger",
	Subsystem: "ledger",
	Name:      "equation_check_failures_total",
	Help:      "Total fundamental-equation checks that found a discrepancy.",
})

// ─── Budget Metrics ─────────────────────────────────────────────────────────

// AllocationRuns tracks monthly allocation runs.
var AllocationRuns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pocketledger",
	Subsystem: "budget",
	Name:      "allocation_runs_total",
	Help:      "Total monthly allocation runs executed.",
})

// EnvelopesAllocated tracks envelopes touched per allocation run.
var EnvelopesAllocated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pocketledger",
	Subsystem: "budget",
	Name:      "envelopes_allocated_total",
	Help:      "Total envelope allocations applied across all runs.",
})

// EnvelopeTransactions tracks audit-trail rows by type.
var EnvelopeTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pocketledger",
	Subsystem: "budget",
	Name:      "envelope_transactions_total",
	Help:      "Total envelope audit-trail transactions by type.",
}, []string{"type"})

// EnvelopeBalance tracks the current balance of each budget envelope.
var EnvelopeBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pocketledger",
	Subsystem: "budget",
	Name:      "envelope_balance",
	Help:      "Current balance of each budget envelope.",
}, []string{"envelope"})

// UpdateEnvelopeBalances refreshes the balance gauge from the current
// envelope set.
func UpdateEnvelopeBalances(envs []domain.BudgetEnvelope) {
	for _, e := range envs {
		bal, _ := e.Balance.Float64()
		EnvelopeBalance.WithLabelValues(e.Name).Set(bal)
	}
}

// ─── Recorder ───────────────────────────────────────────────────────────────

// Recorder adapts the package metrics to the engine's Metrics interface.
type Recorder struct{}

// NewRecorder returns a Recorder wired to the default registry.
func NewRecorder() Recorder { return Recorder{} }

func (Recorder) EntryPosted() {
	EntriesPosted.Inc()
}

func (Recorder) AllocationRun(envelopes int) {
	AllocationRuns.Inc()
	EnvelopesAllocated.Add(float64(envelopes))
}

func (Recorder) EnvelopeTxn(txnType domain.EnvelopeTxnType) {
	EnvelopeTransactions.WithLabelValues(string(txnType)).Inc()
}

func (Recorder) EquationCheckFailed() {
	EquationCheckFailures.Inc()
}
