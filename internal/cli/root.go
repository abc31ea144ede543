// Package cli implements the pocketledger command line interface. The
// CLI opens the configured store directly; `serve` runs the HTTP API.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/app/engine"
	"github.com/pocketledger/pocketledger/internal/daemon"
	"github.com/pocketledger/pocketledger/internal/domain"
	"github.com/pocketledger/pocketledger/internal/infra/memstore"
	"github.com/pocketledger/pocketledger/internal/infra/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "pocketledger",
	Short: "Double-entry personal finance with envelope budgeting",
	Long: `pocketledger is a personal finance tracker built on a double-entry
ledger with a virtual envelope overlay: every transaction is a balanced
journal entry, and budget envelopes partition bank balances into
spending categories without moving real money.`,
	SilenceUsage: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.pocketledger/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config or the default.
func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(configPath)
}

// openStore opens the configured store. An empty path gives an
// in-memory store, useful for trying commands without a database.
func openStore(cfg daemon.Config) (domain.Store, func(), error) {
	if cfg.Store.Path == "" {
		return memstore.New(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		return nil, nil, err
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

// newEngine builds the posting engine over the store.
func newEngine(store domain.Store) *engine.Service {
	return engine.New(store)
}

// findAccount resolves an account reference: a UUID or a name.
func findAccount(store domain.Store, ref string) (domain.Account, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.Account(id)
	}
	accounts, err := store.Accounts()
	if err != nil {
		return domain.Account{}, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, ref) {
			return a, nil
		}
	}
	return domain.Account{}, fmt.Errorf("%w: %q", domain.ErrAccountNotFound, ref)
}

// findBudgetEnvelope resolves a budget envelope reference the same way.
func findBudgetEnvelope(store domain.Store, ref string) (domain.BudgetEnvelope, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return store.BudgetEnvelope(id)
	}
	envs, err := store.BudgetEnvelopes()
	if err != nil {
		return domain.BudgetEnvelope{}, err
	}
	for _, e := range envs {
		if strings.EqualFold(e.Name, ref) {
			return e, nil
		}
	}
	return domain.BudgetEnvelope{}, fmt.Errorf("%w: %q", domain.ErrBudgetEnvelopeNotFound, ref)
}
